package domain

import "errors"

// Domain errors
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrResultNotFound    = errors.New("analysis result not found")
	ErrNotebookNotFound  = errors.New("notebook not found")
	ErrNoteNotFound      = errors.New("note not found")
	ErrInvalidFile       = errors.New("invalid file")
	ErrFileTooLarge      = errors.New("file too large")
	ErrQueueFull         = errors.New("analysis queue is full")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrFileNotFound      = errors.New("stored file not found")
	ErrJobNotRetryable   = errors.New("job is not in a retryable state")
	ErrAnalysisNotReady  = errors.New("analysis is not complete")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
