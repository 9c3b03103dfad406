package domain

import (
	"strings"
	"time"
)

// NoteType says where a note's content came from.
type NoteType string

const (
	NoteTypeText NoteType = "text"
	NoteTypePDF  NoteType = "pdf"
	NoteTypeFile NoteType = "file"
)

// Notebook groups notes that are queried together.
type Notebook struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Note is an independent text blob inside a notebook.
type Note struct {
	ID             string    `json:"id"`
	NotebookID     string    `json:"notebook_id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	NoteType       NoteType  `json:"note_type"`
	SourceFilename string    `json:"source_filename,omitempty"`
	WordCount      int       `json:"word_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NotebookWithNotes is the detail view of a notebook.
type NotebookWithNotes struct {
	Notebook *Notebook `json:"notebook"`
	Notes    []*Note   `json:"notes"`
}

// Validate checks a notebook before it is stored.
func (n *Notebook) Validate() error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Message: "notebook ID is required"}
	}
	if strings.TrimSpace(n.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return nil
}

// Validate checks a note before it is stored.
func (n *Note) Validate() error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Message: "note ID is required"}
	}
	if n.NotebookID == "" {
		return &ValidationError{Field: "notebook_id", Message: "notebook ID is required"}
	}
	if n.WordCount < 0 {
		return &ValidationError{Field: "word_count", Message: "word count cannot be negative"}
	}
	return nil
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Chunk is a retrieval window over one source text. Start and End are
// rune offsets into the source.
type Chunk struct {
	SourceID    string `json:"source_id"`
	SourceTitle string `json:"source_title"`
	Index       int    `json:"index"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Text        string `json:"text"`
}

// Source identifies a note that contributed to an answer.
type Source struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Answer is the QA engine's reply.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	HasAI   bool     `json:"hasAI"`
}
