// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"net/http"

	"legal-doc-analyzer/internal/domain"

	"github.com/gorilla/mux"
)

// DocumentService is what the document routes need from the service layer.
type DocumentService interface {
	Upload(ctx context.Context, filename string, data []byte) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetAnalysis(ctx context.Context, id string) (*domain.AnalysisResult, error)
	Retry(ctx context.Context, id string) (*domain.Job, error)
	Ask(ctx context.Context, id, query string) (domain.Answer, error)
}

type askRequest struct {
	Query string `json:"query"`
}

// DocumentHandler handles document-related HTTP requests
type DocumentHandler struct {
	documents   DocumentService
	maxFileSize int64
	logger      domain.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents DocumentService, maxFileSize int64, logger domain.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents:   documents,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// UploadDocument accepts a PDF and answers 202 with its pending job.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, h.maxFileSize)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	job, err := h.documents.Upload(r.Context(), name, data)
	if err != nil {
		if job != nil {
			h.logger.Warn("Upload accepted but not queued", "job_id", job.ID, "error", err)
		}
		writeAppError(w, h.logger, err, "filename", name)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// GetDocument returns the job status of a document.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.documents.GetJob(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err, "job_id", id)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetAnalysis returns the analysis of a completed document.
func (h *DocumentHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := h.documents.GetAnalysis(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err, "job_id", id)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RetryDocument re-queues a failed analysis.
func (h *DocumentHandler) RetryDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.documents.Retry(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err, "job_id", id)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// AskDocument answers a question about an analysed document.
func (h *DocumentHandler) AskDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	answer, err := h.documents.Ask(r.Context(), id, req.Query)
	if err != nil {
		writeAppError(w, h.logger, err, "job_id", id)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
