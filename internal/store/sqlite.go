package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.Store on modernc.org/sqlite. Timestamps are
// stored as UTC unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ domain.Store = (*SQLiteStore)(nil)

// NewSQLite opens the database at path and configures WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas below are per connection and SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	filename   TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	file_size  INTEGER NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_results (
	document_id TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notebooks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id              TEXT PRIMARY KEY,
	notebook_id     TEXT NOT NULL REFERENCES notebooks(id),
	title           TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	note_type       TEXT NOT NULL DEFAULT 'text',
	source_filename TEXT NOT NULL DEFAULT '',
	word_count      INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_notes_notebook_id ON notes(notebook_id);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, status, message, file_size, page_count, created_at, updated_at FROM jobs WHERE id = ?`, id)
	job, err := scanSQLiteJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrJobNotFound, "job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) Set(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return eris.New("job is required")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, filename, status, message, file_size, page_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   filename = excluded.filename, status = excluded.status, message = excluded.message,
		   file_size = excluded.file_size, page_count = excluded.page_count,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		job.ID, job.Filename, string(job.Status), job.Message, job.FileSize, job.PageCount,
		toNanos(job.CreatedAt), toNanos(job.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: set job %s", job.ID)
}

// CompareAndSwap is a single conditional UPDATE, so SQLite's write lock
// makes it atomic.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, id string, expected domain.JobStatus, next *domain.Job) (bool, error) {
	if err := domain.ValidateSwap(id, expected, next); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET filename = ?, status = ?, message = ?, file_size = ?, page_count = ?, created_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		next.Filename, string(next.Status), next.Message, next.FileSize, next.PageCount,
		toNanos(next.CreatedAt), toNanos(next.UpdatedAt), id, string(expected),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: swap job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *domain.AnalysisResult) error {
	if result == nil || result.DocumentID == "" {
		return eris.New("result with document id is required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (document_id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		result.DocumentID, string(payload), toNanos(result.CreatedAt),
	)
	return eris.Wrapf(err, "sqlite: save result %s", result.DocumentID)
}

func (s *SQLiteStore) GetResult(ctx context.Context, documentID string) (*domain.AnalysisResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analysis_results WHERE document_id = ?`, documentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrResultNotFound, "document %s", documentID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", documentID)
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &result, nil
}

func (s *SQLiteStore) CreateNotebook(ctx context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notebooks (id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		nb.ID, nb.Title, nb.Description, toNanos(nb.CreatedAt), toNanos(nb.UpdatedAt),
	)
	return eris.Wrap(err, "sqlite: insert notebook")
}

func (s *SQLiteStore) GetNotebook(ctx context.Context, id string) (*domain.Notebook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, created_at, updated_at FROM notebooks WHERE id = ?`, id)
	nb, err := scanSQLiteNotebook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get notebook %s", id)
	}
	return nb, nil
}

func (s *SQLiteStore) ListNotebooks(ctx context.Context) ([]*domain.Notebook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, created_at, updated_at FROM notebooks ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notebooks")
	}
	defer rows.Close()

	out := make([]*domain.Notebook, 0)
	for rows.Next() {
		nb, err := scanSQLiteNotebook(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notebook")
		}
		out = append(out, nb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate notebooks")
}

func (s *SQLiteStore) UpdateNotebook(ctx context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notebooks SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		nb.Title, nb.Description, toNanos(nb.UpdatedAt), nb.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update notebook %s", nb.ID)
	}
	return checkRowsAffected(res, domain.ErrNotebookNotFound, nb.ID)
}

// DeleteNotebook removes the notebook and its notes in one transaction.
func (s *SQLiteStore) DeleteNotebook(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE notebook_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete notes of %s", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete notebook %s", id)
	}
	if err := checkRowsAffected(res, domain.ErrNotebookNotFound, id); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) CreateNote(ctx context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	if _, err := s.GetNotebook(ctx, note.NotebookID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, notebook_id, title, content, note_type, source_filename, word_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.NotebookID, note.Title, note.Content, string(note.NoteType), note.SourceFilename,
		note.WordCount, toNanos(note.CreatedAt), toNanos(note.UpdatedAt),
	)
	return eris.Wrap(err, "sqlite: insert note")
}

func (s *SQLiteStore) GetNote(ctx context.Context, notebookID, noteID string) (*domain.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, notebook_id, title, content, note_type, source_filename, word_count, created_at, updated_at
		 FROM notes WHERE id = ? AND notebook_id = ?`, noteID, notebookID)
	note, err := scanSQLiteNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrNoteNotFound, "note %s", noteID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get note %s", noteID)
	}
	return note, nil
}

func (s *SQLiteStore) ListNotes(ctx context.Context, notebookID string) ([]*domain.Note, error) {
	if _, err := s.GetNotebook(ctx, notebookID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, notebook_id, title, content, note_type, source_filename, word_count, created_at, updated_at
		 FROM notes WHERE notebook_id = ? ORDER BY updated_at DESC, id`, notebookID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notes")
	}
	defer rows.Close()

	out := make([]*domain.Note, 0)
	for rows.Next() {
		note, err := scanSQLiteNote(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		out = append(out, note)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate notes")
}

func (s *SQLiteStore) UpdateNote(ctx context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, word_count = ?, updated_at = ? WHERE id = ? AND notebook_id = ?`,
		note.Title, note.Content, note.WordCount, toNanos(note.UpdatedAt), note.ID, note.NotebookID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update note %s", note.ID)
	}
	return checkRowsAffected(res, domain.ErrNoteNotFound, note.ID)
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, notebookID, noteID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND notebook_id = ?`, noteID, notebookID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete note %s", noteID)
	}
	return checkRowsAffected(res, domain.ErrNoteNotFound, noteID)
}

func checkRowsAffected(res sql.Result, notFound error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(notFound, "%s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteJob(row scannable) (*domain.Job, error) {
	var job domain.Job
	var status string
	var created, updated int64
	if err := row.Scan(&job.ID, &job.Filename, &status, &job.Message, &job.FileSize, &job.PageCount, &created, &updated); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.CreatedAt = fromNanos(created)
	job.UpdatedAt = fromNanos(updated)
	return &job, nil
}

func scanSQLiteNotebook(row scannable) (*domain.Notebook, error) {
	var nb domain.Notebook
	var created, updated int64
	if err := row.Scan(&nb.ID, &nb.Title, &nb.Description, &created, &updated); err != nil {
		return nil, err
	}
	nb.CreatedAt = fromNanos(created)
	nb.UpdatedAt = fromNanos(updated)
	return &nb, nil
}

func scanSQLiteNote(row scannable) (*domain.Note, error) {
	var note domain.Note
	var noteType string
	var created, updated int64
	if err := row.Scan(&note.ID, &note.NotebookID, &note.Title, &note.Content, &noteType,
		&note.SourceFilename, &note.WordCount, &created, &updated); err != nil {
		return nil, err
	}
	note.NoteType = domain.NoteType(noteType)
	note.CreatedAt = fromNanos(created)
	note.UpdatedAt = fromNanos(updated)
	return &note, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
