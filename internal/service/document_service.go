package service

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

const (
	DefaultMaxFileSize = 20 << 20
	MaxQueryLength     = 2000
)

var pdfMagic = []byte("%PDF")

// ValidatePDFUpload checks size, extension and magic bytes of an upload.
func ValidatePDFUpload(filename string, data []byte, maxSize int64) error {
	if len(data) == 0 {
		return eris.Wrap(domain.ErrInvalidFile, "file is empty")
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return eris.Wrapf(domain.ErrFileTooLarge, "%d bytes exceeds the %d MB limit", len(data), maxSize>>20)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return eris.Wrapf(domain.ErrInvalidFile, "%q is not a PDF file", filename)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return eris.Wrapf(domain.ErrInvalidFile, "%q does not look like a PDF", filename)
	}
	return nil
}

// ValidateQuery trims a question and rejects empty or oversized ones.
func ValidateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", &domain.ValidationError{Field: "query", Message: "query is required"}
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return "", &domain.ValidationError{Field: "query", Message: "query must be at most 2000 characters"}
	}
	return query, nil
}

// DocumentService is the entry point for uploaded contracts: it hands them
// to the pipeline and serves their status, results and questions.
type DocumentService struct {
	pipeline *AnalysisPipeline
	jobs     domain.JobStore
	results  domain.AnalysisRepository
	qa       *QAEngine
	logger   domain.Logger
}

func NewDocumentService(
	pipeline *AnalysisPipeline,
	jobs domain.JobStore,
	results domain.AnalysisRepository,
	qa *QAEngine,
	logger domain.Logger,
) *DocumentService {
	return &DocumentService{
		pipeline: pipeline,
		jobs:     jobs,
		results:  results,
		qa:       qa,
		logger:   logger,
	}
}

// Upload queues a PDF for analysis and returns its pending job.
func (s *DocumentService) Upload(ctx context.Context, filename string, data []byte) (*domain.Job, error) {
	return s.pipeline.Submit(ctx, filename, data)
}

func (s *DocumentService) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.Get(ctx, id)
}

// GetAnalysis returns the stored result of a completed job. Jobs in any
// other state give domain.ErrAnalysisNotReady.
func (s *DocumentService) GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusCompleted {
		return nil, eris.Wrapf(domain.ErrAnalysisNotReady, "job %s is %s", id, job.Status)
	}
	return s.results.GetResult(ctx, id)
}

func (s *DocumentService) Retry(ctx context.Context, id string) (*domain.Job, error) {
	return s.pipeline.Retry(ctx, id)
}

// Ask answers a question from the analysed document's full text.
func (s *DocumentService) Ask(ctx context.Context, id, query string) (domain.Answer, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return domain.Answer{}, err
	}
	result, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return domain.Answer{}, err
	}

	s.logger.Debug("Document question", "job_id", id, "query_len", len(query))
	return s.qa.AskDocument(ctx, result.FullText, query), nil
}
