package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/service"
	"legal-doc-analyzer/internal/store"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, filename string, data []byte) (*domain.Job, error) {
	args := m.Called(ctx, filename, data)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockDocumentService) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockDocumentService) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	args := m.Called(ctx, id)
	result, _ := args.Get(0).(*domain.AnalysisResult)
	return result, args.Error(1)
}

func (m *MockDocumentService) Retry(ctx context.Context, id string) (*domain.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockDocumentService) Ask(ctx context.Context, id, query string) (domain.Answer, error) {
	args := m.Called(ctx, id, query)
	return args.Get(0).(domain.Answer), args.Error(1)
}

func newTestRouter(t *testing.T, docs DocumentService) http.Handler {
	t.Helper()
	logger := NewMockHandlerLogger()
	notebooks := service.NewNotebookService(store.NewMemory(), nil, service.NewQAEngine(nil, nil, service.QAConfig{}, logger), 1<<20, logger)
	return NewRouter(
		NewDocumentHandler(docs, 1<<20, logger),
		NewNotebookHandler(notebooks, 1<<20, logger),
		nil,
		logger,
	)
}

func sampleJob(status domain.JobStatus) *domain.Job {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Job{ID: "job-1", Filename: "msa.pdf", Status: status, Message: service.MsgQueued, FileSize: 8, CreatedAt: now, UpdatedAt: now}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func TestDocumentHandler_Upload(t *testing.T) {
	docs := new(MockDocumentService)
	docs.On("Upload", mock.Anything, "msa.pdf", []byte("%PDF-1.7")).Return(sampleJob(domain.JobStatusPending), nil)
	router := newTestRouter(t, docs)

	body, ct := multipartBody(t, "file", "msa.pdf", []byte("%PDF-1.7"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var job domain.Job
	decodeBody(t, rr, &job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	docs.AssertExpectations(t)
}

func TestDocumentHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		job    *domain.Job
		status int
		code   string
	}{
		{"invalid file", eris.Wrapf(domain.ErrInvalidFile, "%q is not a PDF file", "msa.pdf"), nil, http.StatusBadRequest, "INVALID_FILE"},
		{"too large", eris.Wrap(domain.ErrFileTooLarge, "too big"), nil, http.StatusBadRequest, "FILE_TOO_LARGE"},
		{"queue full", eris.Wrap(domain.ErrQueueFull, "task"), sampleJob(domain.JobStatusFailed), http.StatusServiceUnavailable, "QUEUE_FULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := new(MockDocumentService)
			docs.On("Upload", mock.Anything, "msa.pdf", mock.Anything).Return(tt.job, tt.err)
			router := newTestRouter(t, docs)

			body, ct := multipartBody(t, "file", "msa.pdf", []byte("%PDF"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			var resp errorResponse
			decodeBody(t, rr, &resp)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestDocumentHandler_UploadWithoutFile(t *testing.T) {
	docs := new(MockDocumentService)
	router := newTestRouter(t, docs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	docs.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentHandler_GetDocument(t *testing.T) {
	docs := new(MockDocumentService)
	docs.On("GetJob", mock.Anything, "job-1").Return(sampleJob(domain.JobStatusProcessing), nil)
	docs.On("GetJob", mock.Anything, "nope").Return(nil, eris.Wrapf(domain.ErrJobNotFound, "job %s", "nope"))
	router := newTestRouter(t, docs)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/job-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"processing"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Document not found","code":"NOT_FOUND"}`, rr.Body.String())
}

func TestDocumentHandler_GetAnalysis(t *testing.T) {
	result := &domain.AnalysisResult{
		DocumentID: "job-1",
		FullText:   "text",
		Clauses: []domain.Clause{{
			ID: "clause-1", PageNumber: 1, Text: "text", Category: domain.CategoryGreen,
			Entities: []domain.Entity{}, LegalTerms: []domain.LegalTerm{}, Source: domain.ClauseSourceRules,
		}},
		Stats: domain.DocumentStats{Pages: 1, Words: 1, Clauses: 1, Green: 1},
	}
	docs := new(MockDocumentService)
	docs.On("GetAnalysis", mock.Anything, "job-1").Return(result, nil)
	docs.On("GetAnalysis", mock.Anything, "job-2").Return(nil, eris.Wrap(domain.ErrAnalysisNotReady, "job job-2 is processing"))
	router := newTestRouter(t, docs)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/job-1/analysis", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.AnalysisResult
	decodeBody(t, rr, &got)
	assert.Equal(t, "clause-1", got.Clauses[0].ID)
	assert.Contains(t, rr.Body.String(), `"ocr_page_width"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/documents/job-2/analysis", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"NOT_READY"`)
}

func TestDocumentHandler_Retry(t *testing.T) {
	docs := new(MockDocumentService)
	docs.On("Retry", mock.Anything, "job-1").Return(sampleJob(domain.JobStatusPending), nil)
	docs.On("Retry", mock.Anything, "job-2").Return(nil, eris.Wrap(domain.ErrJobNotRetryable, "job job-2 is completed"))
	router := newTestRouter(t, docs)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/documents/job-1/retry", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/documents/job-2/retry", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDocumentHandler_Ask(t *testing.T) {
	docs := new(MockDocumentService)
	docs.On("Ask", mock.Anything, "job-1", "Who pays?").
		Return(domain.Answer{Answer: "The buyer.", Sources: []domain.Source{}, HasAI: true}, nil)
	docs.On("Ask", mock.Anything, "job-1", "").
		Return(domain.Answer{}, &domain.ValidationError{Field: "query", Message: "query is required"})
	router := newTestRouter(t, docs)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/documents/job-1/ask", strings.NewReader(`{"query":"Who pays?"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"answer":"The buyer.","sources":[],"hasAI":true}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/documents/job-1/ask", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "query is required")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/documents/job-1/ask", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
