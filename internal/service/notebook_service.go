package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

const (
	defaultNotebookTitle = "Untitled Notebook"
	defaultNoteTitle     = "Untitled"
)

// PlainTextExtractor pulls the text of a PDF for use as note content.
type PlainTextExtractor interface {
	ExtractPlainText(data []byte) (string, int)
}

type CreateNotebookRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateNotebookRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// NotebookService manages notebooks and their notes and answers questions
// over a notebook's notes.
type NotebookService struct {
	repo        domain.NotebookRepository
	pdf         PlainTextExtractor
	qa          *QAEngine
	maxFileSize int64
	logger      domain.Logger
	now         func() time.Time
}

func NewNotebookService(
	repo domain.NotebookRepository,
	pdf PlainTextExtractor,
	qa *QAEngine,
	maxFileSize int64,
	logger domain.Logger,
) *NotebookService {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &NotebookService{
		repo:        repo,
		pdf:         pdf,
		qa:          qa,
		maxFileSize: maxFileSize,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *NotebookService) CreateNotebook(ctx context.Context, req CreateNotebookRequest) (*domain.Notebook, error) {
	now := s.now().UTC()
	nb := &domain.Notebook{
		ID:          uuid.NewString(),
		Title:       orDefault(req.Title, defaultNotebookTitle),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateNotebook(ctx, nb); err != nil {
		return nil, err
	}
	s.logger.Info("Notebook created", "notebook_id", nb.ID)
	return nb, nil
}

// ListNotebooks returns notebooks, most recently updated first.
func (s *NotebookService) ListNotebooks(ctx context.Context) ([]*domain.Notebook, error) {
	return s.repo.ListNotebooks(ctx)
}

func (s *NotebookService) GetNotebook(ctx context.Context, id string) (*domain.NotebookWithNotes, error) {
	nb, err := s.repo.GetNotebook(ctx, id)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.NotebookWithNotes{Notebook: nb, Notes: notes}, nil
}

func (s *NotebookService) UpdateNotebook(ctx context.Context, id string, req UpdateNotebookRequest) (*domain.Notebook, error) {
	nb, err := s.repo.GetNotebook(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		nb.Title = orDefault(*req.Title, defaultNotebookTitle)
	}
	if req.Description != nil {
		nb.Description = strings.TrimSpace(*req.Description)
	}
	nb.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateNotebook(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

// DeleteNotebook removes a notebook together with its notes.
func (s *NotebookService) DeleteNotebook(ctx context.Context, id string) error {
	if err := s.repo.DeleteNotebook(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Notebook deleted", "notebook_id", id)
	return nil
}

func (s *NotebookService) AddNote(ctx context.Context, notebookID string, req CreateNoteRequest) (*domain.Note, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, &domain.ValidationError{Field: "content", Message: "content is required"}
	}
	return s.createNote(ctx, notebookID, req.Title, content, domain.NoteTypeText, "")
}

// UploadNote turns an uploaded PDF, TXT, MD or HTML file into a note.
func (s *NotebookService) UploadNote(ctx context.Context, notebookID, filename string, data []byte) (*domain.Note, error) {
	if len(data) == 0 {
		return nil, eris.Wrap(domain.ErrInvalidFile, "file is empty")
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, eris.Wrapf(domain.ErrFileTooLarge, "%d bytes exceeds the %d MB limit", len(data), s.maxFileSize>>20)
	}

	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var (
		content  string
		noteType domain.NoteType
	)
	switch format := TextFormat(filename); format {
	case "pdf":
		if err := ValidatePDFUpload(filename, data, s.maxFileSize); err != nil {
			return nil, err
		}
		text, pages := s.pdf.ExtractPlainText(data)
		s.logger.Debug("PDF note extracted", "filename", filename, "pages", pages, "chars", len(text))
		content, noteType = text, domain.NoteTypePDF
	case "txt", "md", "html", "htm":
		text, err := ExtractTextDocument(format, data)
		if err != nil {
			return nil, err
		}
		content, noteType = text, domain.NoteTypeFile
	default:
		return nil, eris.Wrapf(domain.ErrInvalidFile, "unsupported file type %q", filepath.Ext(filename))
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, eris.Wrapf(domain.ErrInvalidFile, "no text could be extracted from %q", filename)
	}
	return s.createNote(ctx, notebookID, title, content, noteType, filename)
}

func (s *NotebookService) createNote(ctx context.Context, notebookID, title, content string, noteType domain.NoteType, sourceFilename string) (*domain.Note, error) {
	now := s.now().UTC()
	note := &domain.Note{
		ID:             uuid.NewString(),
		NotebookID:     notebookID,
		Title:          orDefault(title, defaultNoteTitle),
		Content:        content,
		NoteType:       noteType,
		SourceFilename: sourceFilename,
		WordCount:      domain.CountWords(content),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	s.touch(ctx, notebookID, now)
	s.logger.Info("Note created", "notebook_id", notebookID, "note_id", note.ID, "type", noteType, "words", note.WordCount)
	return note, nil
}

func (s *NotebookService) UpdateNote(ctx context.Context, notebookID, noteID string, req UpdateNoteRequest) (*domain.Note, error) {
	note, err := s.repo.GetNote(ctx, notebookID, noteID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		note.Title = orDefault(*req.Title, defaultNoteTitle)
	}
	if req.Content != nil {
		note.Content = strings.TrimSpace(*req.Content)
		note.WordCount = domain.CountWords(note.Content)
	}
	now := s.now().UTC()
	note.UpdatedAt = now

	if err := s.repo.UpdateNote(ctx, note); err != nil {
		return nil, err
	}
	s.touch(ctx, notebookID, now)
	return note, nil
}

func (s *NotebookService) DeleteNote(ctx context.Context, notebookID, noteID string) error {
	if err := s.repo.DeleteNote(ctx, notebookID, noteID); err != nil {
		return err
	}
	s.touch(ctx, notebookID, s.now().UTC())
	return nil
}

// Ask answers a question from the notebook's notes.
func (s *NotebookService) Ask(ctx context.Context, notebookID, query string) (domain.Answer, error) {
	query, err := ValidateQuery(query)
	if err != nil {
		return domain.Answer{}, err
	}
	notes, err := s.repo.ListNotes(ctx, notebookID)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.qa.AskNotebook(ctx, notes, query), nil
}

// touch bumps the notebook's UpdatedAt. A failure only costs list ordering,
// so it is logged rather than returned.
func (s *NotebookService) touch(ctx context.Context, notebookID string, at time.Time) {
	nb, err := s.repo.GetNotebook(ctx, notebookID)
	if err == nil {
		nb.UpdatedAt = at
		err = s.repo.UpdateNotebook(ctx, nb)
	}
	if err != nil {
		s.logger.Warn("Failed to touch notebook", "notebook_id", notebookID, "error", err)
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
