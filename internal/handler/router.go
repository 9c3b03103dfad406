package handler

import (
	"net/http"

	"legal-doc-analyzer/internal/domain"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// DefaultAllowedOrigins are the local frontend dev servers.
var DefaultAllowedOrigins = []string{
	"http://localhost:5173", // SvelteKit dev server
	"http://localhost:4173", // SvelteKit preview
	"http://localhost:3000", // Alternative dev port
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	documentHandler *DocumentHandler,
	notebookHandler *NotebookHandler,
	allowedOrigins []string,
	logger domain.Logger,
) http.Handler {
	router := mux.NewRouter()
	router.Use(RequestID, AccessLog(logger), Recover(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "legal-doc-analyzer"})
	}).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	api := router.PathPrefix("/api/v1").Subrouter()

	// Document routes
	api.HandleFunc("/documents", documentHandler.UploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}", documentHandler.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/analysis", documentHandler.GetAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/retry", documentHandler.RetryDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/ask", documentHandler.AskDocument).Methods(http.MethodPost)

	// Notebook routes
	api.HandleFunc("/notebooks", notebookHandler.ListNotebooks).Methods(http.MethodGet)
	api.HandleFunc("/notebooks", notebookHandler.CreateNotebook).Methods(http.MethodPost)
	api.HandleFunc("/notebooks/{id}", notebookHandler.GetNotebook).Methods(http.MethodGet)
	api.HandleFunc("/notebooks/{id}", notebookHandler.UpdateNotebook).Methods(http.MethodPut)
	api.HandleFunc("/notebooks/{id}", notebookHandler.DeleteNotebook).Methods(http.MethodDelete)
	api.HandleFunc("/notebooks/{id}/notes", notebookHandler.AddNote).Methods(http.MethodPost)
	api.HandleFunc("/notebooks/{id}/notes/upload", notebookHandler.UploadNote).Methods(http.MethodPost)
	api.HandleFunc("/notebooks/{id}/notes/{noteId}", notebookHandler.UpdateNote).Methods(http.MethodPut)
	api.HandleFunc("/notebooks/{id}/notes/{noteId}", notebookHandler.DeleteNote).Methods(http.MethodDelete)
	api.HandleFunc("/notebooks/{id}/ask", notebookHandler.AskNotebook).Methods(http.MethodPost)

	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			RequestIDHeader,
		},
		ExposedHeaders: []string{
			RequestIDHeader,
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
