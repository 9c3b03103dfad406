package repository

import (
	"context"
	"encoding/json"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

// SupabaseJobRepository stores jobs and analysis results in Supabase tables
// through PostgREST. It uses the same schema as the Postgres store.
type SupabaseJobRepository struct {
	supabaseClient *SupabaseClient
	logger         domain.Logger
}

var (
	_ domain.JobStore           = (*SupabaseJobRepository)(nil)
	_ domain.AnalysisRepository = (*SupabaseJobRepository)(nil)
)

// NewSupabaseJobRepository creates a new Supabase job repository
func NewSupabaseJobRepository(supabaseClient *SupabaseClient, logger domain.Logger) *SupabaseJobRepository {
	return &SupabaseJobRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

type resultRow struct {
	DocumentID string          `json:"document_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (r *SupabaseJobRepository) Get(_ context.Context, id string) (*domain.Job, error) {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("jobs").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get job %s", id)
	}

	var jobs []domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal job")
	}
	if len(jobs) == 0 {
		return nil, eris.Wrapf(domain.ErrJobNotFound, "job %s", id)
	}
	return &jobs[0], nil
}

func (r *SupabaseJobRepository) Set(_ context.Context, job *domain.Job) error {
	if job == nil {
		return eris.New("job is required")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	row := *job
	row.Filename = sanitizeText(row.Filename)
	_, _, err = client.From("jobs").Insert(row, true, "id", "minimal", "").Execute()
	if err != nil {
		return eris.Wrapf(err, "failed to upsert job %s", job.ID)
	}
	return nil
}

// CompareAndSwap issues a PATCH filtered on id and status. PostgreSQL
// applies it under the row lock, so only one writer can match.
func (r *SupabaseJobRepository) CompareAndSwap(ctx context.Context, id string, expected domain.JobStatus, next *domain.Job) (bool, error) {
	if err := domain.ValidateSwap(id, expected, next); err != nil {
		return false, err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return false, err
	}

	update := map[string]interface{}{
		"status":     next.Status,
		"message":    sanitizeText(next.Message),
		"page_count": next.PageCount,
		"file_size":  next.FileSize,
		"updated_at": next.UpdatedAt,
	}
	data, _, err := client.From("jobs").
		Update(update, "representation", "").
		Eq("id", id).
		Eq("status", string(expected)).
		Execute()
	if err != nil {
		return false, eris.Wrapf(err, "failed to swap job %s", id)
	}

	var updated []domain.Job
	if err := json.Unmarshal(data, &updated); err != nil {
		return false, eris.Wrap(err, "failed to unmarshal swapped job")
	}
	if len(updated) > 0 {
		return true, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	r.logger.Debug("Job swap lost", "job_id", id, "expected", string(expected))
	return false, nil
}

func (r *SupabaseJobRepository) SaveResult(_ context.Context, result *domain.AnalysisResult) error {
	if result == nil || result.DocumentID == "" {
		return eris.New("result with document id is required")
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	clean := *result
	clean.FullText = sanitizeText(result.FullText)
	clean.SummaryText = sanitizeText(result.SummaryText)
	clean.Clauses = make([]domain.Clause, len(result.Clauses))
	for i, c := range result.Clauses {
		c.Text = sanitizeText(c.Text)
		clean.Clauses[i] = c
	}
	payload, err := json.Marshal(clean)
	if err != nil {
		return eris.Wrap(err, "failed to marshal result")
	}

	row := resultRow{DocumentID: result.DocumentID, Payload: payload, CreatedAt: result.CreatedAt}
	_, _, err = client.From("analysis_results").Insert(row, true, "document_id", "minimal", "").Execute()
	if err != nil {
		return eris.Wrapf(err, "failed to save result %s", result.DocumentID)
	}
	return nil
}

func (r *SupabaseJobRepository) GetResult(_ context.Context, documentID string) (*domain.AnalysisResult, error) {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("analysis_results").
		Select("document_id,payload,created_at", "", false).
		Eq("document_id", documentID).
		Execute()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get result %s", documentID)
	}

	var rows []resultRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal result row")
	}
	if len(rows) == 0 {
		return nil, eris.Wrapf(domain.ErrResultNotFound, "document %s", documentID)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(rows[0].Payload, &result); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal result payload")
	}
	return &result, nil
}
