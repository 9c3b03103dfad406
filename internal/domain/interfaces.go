package domain

import (
	"context"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetLogFormat() string
	GetStorageDriver() string
	GetDatabasePath() string
	GetDatabaseURL() string
	GetSupabaseURL() string
	GetSupabaseKey() string
}

// TextBlockExtractor turns raw PDF bytes into positioned text blocks.
// It never fails: unreadable input yields an empty result.
type TextBlockExtractor interface {
	Extract(data []byte) ExtractionResult
}

// ModelInvoker is the single entry point for LLM calls.
type ModelInvoker interface {
	// Enabled reports whether at least one model target is configured.
	Enabled() bool
	Invoke(ctx context.Context, messages []Message) (*Completion, error)
	// InvokeClause requests a JSON clause analysis and always returns a
	// fully-defaulted record when a model answered.
	InvokeClause(ctx context.Context, messages []Message) (ClauseAnalysis, error)
}

// JobStore is the shared job/status store. All operations are atomic per job id.
type JobStore interface {
	Get(ctx context.Context, id string) (*Job, error)
	Set(ctx context.Context, job *Job) error
	// CompareAndSwap replaces the job only if its stored status equals expected.
	// It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, id string, expected JobStatus, next *Job) (bool, error)
}

// AnalysisRepository persists analysis results keyed by document id.
type AnalysisRepository interface {
	SaveResult(ctx context.Context, result *AnalysisResult) error
	GetResult(ctx context.Context, documentID string) (*AnalysisResult, error)
}

// NotebookRepository persists notebooks and their notes.
type NotebookRepository interface {
	CreateNotebook(ctx context.Context, nb *Notebook) error
	GetNotebook(ctx context.Context, id string) (*Notebook, error)
	ListNotebooks(ctx context.Context) ([]*Notebook, error)
	UpdateNotebook(ctx context.Context, nb *Notebook) error
	DeleteNotebook(ctx context.Context, id string) error

	CreateNote(ctx context.Context, note *Note) error
	GetNote(ctx context.Context, notebookID, noteID string) (*Note, error)
	ListNotes(ctx context.Context, notebookID string) ([]*Note, error)
	UpdateNote(ctx context.Context, note *Note) error
	DeleteNote(ctx context.Context, notebookID, noteID string) error
}

// FileStore keeps uploaded originals so a failed analysis can be re-run.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Store bundles every persistence concern behind one backend.
type Store interface {
	JobStore
	AnalysisRepository
	NotebookRepository
	Close() error
}
