package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubConfig struct {
	url, key string
}

func (c stubConfig) GetServerPort() string    { return "8080" }
func (c stubConfig) GetMaxFileSize() int64    { return 20 << 20 }
func (c stubConfig) GetLogLevel() string      { return "info" }
func (c stubConfig) GetLogFormat() string     { return "json" }
func (c stubConfig) GetStorageDriver() string { return "supabase" }
func (c stubConfig) GetDatabasePath() string  { return "" }
func (c stubConfig) GetDatabaseURL() string   { return "" }
func (c stubConfig) GetSupabaseURL() string   { return c.url }
func (c stubConfig) GetSupabaseKey() string   { return c.key }

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Prefer string
	Body   string
}

// fakePostgREST answers each request with the next queued body.
type fakePostgREST struct {
	t         *testing.T
	responses []string
	requests  []recordedRequest
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	q := map[string]string{}
	for k, v := range r.URL.Query() {
		q[k] = v[0]
	}
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  q,
		Prefer: r.Header.Get("Prefer"),
		Body:   string(body),
	})

	resp := "[]"
	if len(f.responses) > 0 {
		resp, f.responses = f.responses[0], f.responses[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func newTestSupabaseStore(t *testing.T, responses ...string) (*SupabaseStore, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{t: t, responses: responses}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewSupabaseStore(stubConfig{url: srv.URL, key: "service-key"}, logger.NewFromZap(zap.NewNop()))
	require.NoError(t, err)
	return store, fake
}

func TestNewSupabaseStore_RequiresCredentials(t *testing.T) {
	_, err := NewSupabaseStore(stubConfig{}, logger.NewFromZap(zap.NewNop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be provided")
}

func TestSupabaseJobRepository_Get(t *testing.T) {
	store, fake := newTestSupabaseStore(t,
		`[{"id":"job-1","filename":"lease.pdf","status":"processing","message":"Extracting text...","file_size":10,"page_count":2}]`,
		`[]`,
	)

	job, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, 2, job.PageCount)

	require.Len(t, fake.requests, 1)
	assert.Equal(t, http.MethodGet, fake.requests[0].Method)
	assert.Equal(t, "/rest/v1/jobs", fake.requests[0].Path)
	assert.Equal(t, "eq.job-1", fake.requests[0].Query["id"])

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestSupabaseJobRepository_CompareAndSwap(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next := &domain.Job{ID: "job-1", Filename: "lease.pdf", Status: domain.JobStatusProcessing, UpdatedAt: now}

	t.Run("swapped", func(t *testing.T) {
		store, fake := newTestSupabaseStore(t, `[{"id":"job-1","status":"processing"}]`)

		ok, err := store.CompareAndSwap(context.Background(), "job-1", domain.JobStatusPending, next)
		require.NoError(t, err)
		assert.True(t, ok)

		require.Len(t, fake.requests, 1)
		req := fake.requests[0]
		assert.Equal(t, http.MethodPatch, req.Method)
		assert.Equal(t, "eq.job-1", req.Query["id"])
		assert.Equal(t, "eq.pending", req.Query["status"])
		assert.Contains(t, req.Prefer, "return=representation")
		assert.Contains(t, req.Body, `"status":"processing"`)
	})

	t.Run("status moved on", func(t *testing.T) {
		store, fake := newTestSupabaseStore(t, `[]`, `[{"id":"job-1","status":"failed"}]`)

		ok, err := store.CompareAndSwap(context.Background(), "job-1", domain.JobStatusPending, next)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Len(t, fake.requests, 2)
	})

	t.Run("missing job", func(t *testing.T) {
		store, _ := newTestSupabaseStore(t, `[]`, `[]`)

		_, err := store.CompareAndSwap(context.Background(), "job-1", domain.JobStatusPending, next)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("illegal transition never reaches the network", func(t *testing.T) {
		store, fake := newTestSupabaseStore(t)
		done := &domain.Job{ID: "job-1", Status: domain.JobStatusPending}

		_, err := store.CompareAndSwap(context.Background(), "job-1", domain.JobStatusCompleted, done)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Empty(t, fake.requests)
	})
}

func TestSupabaseJobRepository_SaveResultStripsNUL(t *testing.T) {
	store, fake := newTestSupabaseStore(t)

	err := store.SaveResult(context.Background(), &domain.AnalysisResult{
		DocumentID: "doc-1",
		FullText:   "rent\x00 is due",
		Clauses:    []domain.Clause{{ID: "clause-1", Text: "tenant\x00 shall pay"}},
	})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/rest/v1/analysis_results", req.Path)
	assert.Equal(t, "document_id", req.Query["on_conflict"])
	assert.Contains(t, req.Prefer, "resolution=merge-duplicates")
	assert.NotContains(t, req.Body, `\u0000`)
	assert.Contains(t, req.Body, "tenant shall pay")
}

func TestSupabaseJobRepository_GetResult(t *testing.T) {
	payload, err := json.Marshal(domain.AnalysisResult{DocumentID: "doc-1", SummaryText: "ok"})
	require.NoError(t, err)
	store, _ := newTestSupabaseStore(t,
		`[{"document_id":"doc-1","payload":`+string(payload)+`}]`,
		`[]`,
	)

	result, err := store.GetResult(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.SummaryText)

	_, err = store.GetResult(context.Background(), "doc-2")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestSupabaseNotebookRepository_ListNotebooksOrdersByUpdate(t *testing.T) {
	store, fake := newTestSupabaseStore(t, `[{"id":"nb-2","title":"B"},{"id":"nb-1","title":"A"}]`)

	nbs, err := store.ListNotebooks(context.Background())
	require.NoError(t, err)
	require.Len(t, nbs, 2)
	assert.Equal(t, "nb-2", nbs[0].ID)
	assert.Equal(t, "updated_at.desc.nullslast", fake.requests[0].Query["order"])
}

func TestSupabaseNotebookRepository_CreateNoteNeedsNotebook(t *testing.T) {
	store, fake := newTestSupabaseStore(t, `[]`)

	err := store.CreateNote(context.Background(), &domain.Note{ID: "n1", NotebookID: "nb-x", Title: "t"})
	assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
	require.Len(t, fake.requests, 1)
	assert.Equal(t, "/rest/v1/notebooks", fake.requests[0].Path)
}

func TestSupabaseNotebookRepository_DeleteNotebookRemovesNotes(t *testing.T) {
	store, fake := newTestSupabaseStore(t,
		`[{"id":"nb-1","title":"A"}]`,
		``,
		`[{"id":"nb-1","title":"A"}]`,
	)

	require.NoError(t, store.DeleteNotebook(context.Background(), "nb-1"))

	require.Len(t, fake.requests, 3)
	assert.Equal(t, http.MethodDelete, fake.requests[1].Method)
	assert.Equal(t, "/rest/v1/notes", fake.requests[1].Path)
	assert.Equal(t, "eq.nb-1", fake.requests[1].Query["notebook_id"])
	assert.Equal(t, http.MethodDelete, fake.requests[2].Method)
	assert.True(t, strings.HasSuffix(fake.requests[2].Path, "/notebooks"))
}

func TestSupabaseNotebookRepository_UpdateNoteNotFound(t *testing.T) {
	store, _ := newTestSupabaseStore(t, `[]`)

	err := store.UpdateNote(context.Background(), &domain.Note{ID: "n1", NotebookID: "nb-1", Title: "t"})
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
}
