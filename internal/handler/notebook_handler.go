package handler

import (
	"context"
	"net/http"

	"legal-doc-analyzer/internal/domain"
	"legal-doc-analyzer/internal/service"

	"github.com/gorilla/mux"
)

// NotebookService is what the notebook routes need from the service layer.
type NotebookService interface {
	CreateNotebook(ctx context.Context, req service.CreateNotebookRequest) (*domain.Notebook, error)
	ListNotebooks(ctx context.Context) ([]*domain.Notebook, error)
	GetNotebook(ctx context.Context, id string) (*domain.NotebookWithNotes, error)
	UpdateNotebook(ctx context.Context, id string, req service.UpdateNotebookRequest) (*domain.Notebook, error)
	DeleteNotebook(ctx context.Context, id string) error

	AddNote(ctx context.Context, notebookID string, req service.CreateNoteRequest) (*domain.Note, error)
	UploadNote(ctx context.Context, notebookID, filename string, data []byte) (*domain.Note, error)
	UpdateNote(ctx context.Context, notebookID, noteID string, req service.UpdateNoteRequest) (*domain.Note, error)
	DeleteNote(ctx context.Context, notebookID, noteID string) error

	Ask(ctx context.Context, notebookID, query string) (domain.Answer, error)
}

type NotebookHandler struct {
	notebooks   NotebookService
	maxFileSize int64
	logger      domain.Logger
}

func NewNotebookHandler(notebooks NotebookService, maxFileSize int64, logger domain.Logger) *NotebookHandler {
	return &NotebookHandler{
		notebooks:   notebooks,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *NotebookHandler) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	notebooks, err := h.notebooks.ListNotebooks(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if notebooks == nil {
		notebooks = make([]*domain.Notebook, 0)
	}
	writeJSON(w, http.StatusOK, notebooks)
}

func (h *NotebookHandler) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req service.CreateNotebookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	nb, err := h.notebooks.CreateNotebook(r.Context(), req)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, nb)
}

func (h *NotebookHandler) GetNotebook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	nb, err := h.notebooks.GetNotebook(r.Context(), id)
	if err != nil {
		writeAppError(w, h.logger, err, "notebook_id", id)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (h *NotebookHandler) UpdateNotebook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req service.UpdateNotebookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	nb, err := h.notebooks.UpdateNotebook(r.Context(), id, req)
	if err != nil {
		writeAppError(w, h.logger, err, "notebook_id", id)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (h *NotebookHandler) DeleteNotebook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.notebooks.DeleteNotebook(r.Context(), id); err != nil {
		writeAppError(w, h.logger, err, "notebook_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotebookHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req service.CreateNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	note, err := h.notebooks.AddNote(r.Context(), id, req)
	if err != nil {
		writeAppError(w, h.logger, err, "notebook_id", id)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UploadNote turns an uploaded PDF, TXT, MD or HTML file into a note.
func (h *NotebookHandler) UploadNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	name, data, err := readUpload(w, r, h.maxFileSize)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	note, err := h.notebooks.UploadNote(r.Context(), id, name, data)
	if err != nil {
		writeAppError(w, h.logger, err, "notebook_id", id, "filename", name)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NotebookHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req service.UpdateNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	note, err := h.notebooks.UpdateNote(r.Context(), vars["id"], vars["noteId"], req)
	if err != nil {
		writeAppError(w, h.logger, err, "notebook_id", vars["id"], "note_id", vars["noteId"])
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NotebookHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.notebooks.DeleteNote(r.Context(), vars["id"], vars["noteId"]); err != nil {
		writeAppError(w, h.logger, err, "notebook_id", vars["id"], "note_id", vars["noteId"])
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AskNotebook answers a question from the notebook's notes.
func (h *NotebookHandler) AskNotebook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	answer, err := h.notebooks.Ask(r.Context(), id, req.Query)
	if err != nil {
		writeAppError(w, h.logger, err, "notebook_id", id)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
