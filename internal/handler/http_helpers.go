package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/service"
	apperrors "legal-doc-analyzer/pkg/errors"
)

// multipartOverhead is the room left for form boundaries and headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Code: code})
}

// writeAppError maps err onto the HTTP error shape. Internal errors are
// logged and their details hidden from the client.
func writeAppError(w http.ResponseWriter, logger domain.Logger, err error, fields ...interface{}) {
	appErr := toAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error(appErr.Message, err, fields...)
	}
	writeError(w, appErr.StatusCode, appErr.Code, appErr.Message)
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return apperrors.NewValidationError(verr.Error())
	}

	switch {
	case errors.Is(err, domain.ErrFileTooLarge):
		return apperrors.NewValidationError(rootMessage(err)).WithCode("FILE_TOO_LARGE")
	case errors.Is(err, domain.ErrInvalidFile):
		return apperrors.NewValidationError(rootMessage(err)).WithCode("INVALID_FILE")
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrResultNotFound):
		return apperrors.NewNotFoundError("Document not found")
	case errors.Is(err, domain.ErrNotebookNotFound):
		return apperrors.NewNotFoundError("Notebook not found")
	case errors.Is(err, domain.ErrNoteNotFound):
		return apperrors.NewNotFoundError("Note not found")
	case errors.Is(err, domain.ErrFileNotFound):
		return apperrors.NewNotFoundError("Original upload is no longer available")
	case errors.Is(err, domain.ErrAnalysisNotReady):
		return apperrors.NewConflictError("Analysis is not complete yet").WithCode("NOT_READY")
	case errors.Is(err, domain.ErrJobNotRetryable):
		return apperrors.NewConflictError("Only failed analyses can be retried").WithCode("NOT_RETRYABLE")
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, service.ErrPoolClosed):
		return apperrors.NewUnavailableError("Analysis queue is full, please try again later", err).WithCode("QUEUE_FULL")
	}
	return apperrors.NewInternalError("Internal server error", err)
}

// rootMessage keeps the outermost context of a wrapped validation error and
// drops the sentinel text after it.
func rootMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("Invalid request body", err.Error())
	}
	return nil
}

// readUpload reads the multipart "file" field, refusing bodies larger than
// maxSize plus form overhead.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, apperrors.NewValidationError("File too large").WithCode("FILE_TOO_LARGE")
		}
		return "", nil, apperrors.NewValidationError("File is required").WithCode("FILE_REQUIRED")
	}
	defer file.Close()

	name := strings.TrimSpace(filepath.Base(header.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "document"
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return "", nil, apperrors.NewValidationError("Failed to read upload", err.Error())
	}
	return name, data, nil
}
