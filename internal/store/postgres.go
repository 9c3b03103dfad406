package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PoolConfig holds optional connection pool sizing.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// PostgresStore implements domain.Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

var _ domain.Store = (*PostgresStore)(nil)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	filename   TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	file_size  BIGINT NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_results (
	document_id TEXT PRIMARY KEY,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notebooks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id              TEXT PRIMARY KEY,
	notebook_id     TEXT NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	note_type       TEXT NOT NULL DEFAULT 'text',
	source_filename TEXT NOT NULL DEFAULT '',
	word_count      INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_notes_notebook_id ON notes(notebook_id);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectJob = `SELECT id, filename, status, message, file_size, page_count, created_at, updated_at FROM jobs WHERE id = $1`

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	var status string
	err := s.pool.QueryRow(ctx, selectJob, id).Scan(
		&job.ID, &job.Filename, &status, &job.Message, &job.FileSize, &job.PageCount, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrJobNotFound, "job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (s *PostgresStore) Set(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return eris.New("job is required")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, filename, status, message, file_size, page_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   filename = EXCLUDED.filename, status = EXCLUDED.status, message = EXCLUDED.message,
		   file_size = EXCLUDED.file_size, page_count = EXCLUDED.page_count,
		   created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`,
		job.ID, job.Filename, string(job.Status), job.Message, job.FileSize, job.PageCount, job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: set job %s", job.ID)
}

// CompareAndSwap relies on the row lock taken by a conditional UPDATE.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, id string, expected domain.JobStatus, next *domain.Job) (bool, error) {
	if err := domain.ValidateSwap(id, expected, next); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET filename = $1, status = $2, message = $3, file_size = $4, page_count = $5, updated_at = $6
		 WHERE id = $7 AND status = $8`,
		next.Filename, string(next.Status), next.Message, next.FileSize, next.PageCount, next.UpdatedAt, id, string(expected),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: swap job %s", id)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *domain.AnalysisResult) error {
	if result == nil || result.DocumentID == "" {
		return eris.New("result with document id is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_results (document_id, payload, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (document_id) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		result.DocumentID, payload, result.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save result %s", result.DocumentID)
}

func (s *PostgresStore) GetResult(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM analysis_results WHERE document_id = $1`, documentID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrResultNotFound, "document %s", documentID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", documentID)
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &result, nil
}

func (s *PostgresStore) CreateNotebook(ctx context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notebooks (id, title, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		nb.ID, nb.Title, nb.Description, nb.CreatedAt, nb.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert notebook")
}

func (s *PostgresStore) GetNotebook(ctx context.Context, id string) (*domain.Notebook, error) {
	var nb domain.Notebook
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, created_at, updated_at FROM notebooks WHERE id = $1`, id,
	).Scan(&nb.ID, &nb.Title, &nb.Description, &nb.CreatedAt, &nb.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get notebook %s", id)
	}
	return &nb, nil
}

func (s *PostgresStore) ListNotebooks(ctx context.Context) ([]*domain.Notebook, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, created_at, updated_at FROM notebooks ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notebooks")
	}
	defer rows.Close()

	out := make([]*domain.Notebook, 0)
	for rows.Next() {
		var nb domain.Notebook
		if err := rows.Scan(&nb.ID, &nb.Title, &nb.Description, &nb.CreatedAt, &nb.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan notebook")
		}
		out = append(out, &nb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate notebooks")
}

func (s *PostgresStore) UpdateNotebook(ctx context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE notebooks SET title = $1, description = $2, updated_at = $3 WHERE id = $4`,
		nb.Title, nb.Description, nb.UpdatedAt, nb.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update notebook %s", nb.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", nb.ID)
	}
	return nil
}

// DeleteNotebook relies on ON DELETE CASCADE for the notes.
func (s *PostgresStore) DeleteNotebook(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notebooks WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete notebook %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO notes (id, notebook_id, title, content, note_type, source_filename, word_count, created_at, updated_at)
		 SELECT $1, id, $3, $4, $5, $6, $7, $8, $9 FROM notebooks WHERE id = $2`,
		note.ID, note.NotebookID, note.Title, note.Content, string(note.NoteType), note.SourceFilename,
		note.WordCount, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert note")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", note.NotebookID)
	}
	return nil
}

const noteColumns = `id, notebook_id, title, content, note_type, source_filename, word_count, created_at, updated_at`

func (s *PostgresStore) GetNote(ctx context.Context, notebookID, noteID string) (*domain.Note, error) {
	note, err := scanPostgresNote(s.pool.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND notebook_id = $2`, noteID, notebookID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrNoteNotFound, "note %s", noteID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get note %s", noteID)
	}
	return note, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, notebookID string) ([]*domain.Note, error) {
	if _, err := s.GetNotebook(ctx, notebookID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE notebook_id = $1 ORDER BY updated_at DESC, id`, notebookID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notes")
	}
	defer rows.Close()

	out := make([]*domain.Note, 0)
	for rows.Next() {
		note, err := scanPostgresNote(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		out = append(out, note)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate notes")
}

func (s *PostgresStore) UpdateNote(ctx context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE notes SET title = $1, content = $2, word_count = $3, updated_at = $4 WHERE id = $5 AND notebook_id = $6`,
		note.Title, note.Content, note.WordCount, note.UpdatedAt, note.ID, note.NotebookID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update note %s", note.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(domain.ErrNoteNotFound, "note %s", note.ID)
	}
	return nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, notebookID, noteID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND notebook_id = $2`, noteID, notebookID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete note %s", noteID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(domain.ErrNoteNotFound, "note %s", noteID)
	}
	return nil
}

func scanPostgresNote(row scannable) (*domain.Note, error) {
	var note domain.Note
	var noteType string
	if err := row.Scan(&note.ID, &note.NotebookID, &note.Title, &note.Content, &noteType,
		&note.SourceFilename, &note.WordCount, &note.CreatedAt, &note.UpdatedAt); err != nil {
		return nil, err
	}
	note.NoteType = domain.NoteType(noteType)
	return &note, nil
}
