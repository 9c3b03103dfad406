package domain

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether from -> to is a legal job transition.
// A failed job may be re-queued; a completed job never changes.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	case JobStatusFailed:
		return to == JobStatusPending
	}
	return false
}

// Job tracks one uploaded document through analysis.
type Job struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	FileSize  int64     `json:"file_size"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe to mutate.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// Validate checks the fields every stored job must carry.
func (j *Job) Validate() error {
	if j.ID == "" {
		return &ValidationError{Field: "id", Message: "job ID is required"}
	}
	switch j.Status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
	default:
		return &ValidationError{Field: "status", Message: "unknown job status " + string(j.Status)}
	}
	if j.FileSize < 0 {
		return &ValidationError{Field: "file_size", Message: "file size cannot be negative"}
	}
	return nil
}

// ValidateSwap checks a compare-and-swap request against the lifecycle.
// Re-writing the same non-terminal status is allowed so progress messages
// can be updated.
func ValidateSwap(id string, expected JobStatus, next *Job) error {
	if next == nil {
		return &ValidationError{Field: "job", Message: "next job is required"}
	}
	if next.ID != id {
		return &ValidationError{Field: "id", Message: "job id mismatch: " + next.ID + " != " + id}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Status == expected && !expected.Terminal() {
		return nil
	}
	if !CanTransition(expected, next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next.Status)
	}
	return nil
}
