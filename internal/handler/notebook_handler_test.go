package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"legal-doc-analyzer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestNotebookHandler_Lifecycle(t *testing.T) {
	router := newTestRouter(t, new(MockDocumentService))

	rr := do(t, router, http.MethodGet, "/api/v1/notebooks", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks", `{"title":"","description":"NDAs"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var nb domain.Notebook
	decodeBody(t, rr, &nb)
	assert.Equal(t, "Untitled Notebook", nb.Title)
	assert.Equal(t, "NDAs", nb.Description)

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/notes", `{"title":"Term","content":"The NDA lasts five years."}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var note domain.Note
	decodeBody(t, rr, &note)
	assert.Equal(t, 5, note.WordCount)

	rr = do(t, router, http.MethodPut, "/api/v1/notebooks/"+nb.ID+"/notes/"+note.ID, `{"content":"The NDA lasts three years after signing."}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decodeBody(t, rr, &note)
	assert.Equal(t, 7, note.WordCount)
	assert.Equal(t, "Term", note.Title)

	rr = do(t, router, http.MethodGet, "/api/v1/notebooks/"+nb.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var detail domain.NotebookWithNotes
	decodeBody(t, rr, &detail)
	assert.Equal(t, nb.ID, detail.Notebook.ID)
	require.Len(t, detail.Notes, 1)

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/ask", `{"query":"How long does the NDA last?"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hasAI":false`)
	assert.Contains(t, rr.Body.String(), "AI service is not configured")

	rr = do(t, router, http.MethodPut, "/api/v1/notebooks/"+nb.ID, `{"title":"Confidentiality"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &nb)
	assert.Equal(t, "Confidentiality", nb.Title)

	rr = do(t, router, http.MethodDelete, "/api/v1/notebooks/"+nb.ID+"/notes/"+note.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, router, http.MethodDelete, "/api/v1/notebooks/"+nb.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, router, http.MethodGet, "/api/v1/notebooks/"+nb.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Notebook not found","code":"NOT_FOUND"}`, rr.Body.String())
}

func TestNotebookHandler_UploadNote(t *testing.T) {
	router := newTestRouter(t, new(MockDocumentService))

	rr := do(t, router, http.MethodPost, "/api/v1/notebooks", `{"title":"Research"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var nb domain.Notebook
	decodeBody(t, rr, &nb)

	body, ct := multipartBody(t, "file", "findings.txt", []byte("Clause 4 caps liability.\r\n\r\n\r\nClause 9 is governed by Delaware law."))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/notes/upload", body)
	req.Header.Set("Content-Type", ct)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var note domain.Note
	decodeBody(t, rr, &note)
	assert.Equal(t, "findings", note.Title)
	assert.Equal(t, "findings.txt", note.SourceFilename)
	assert.Equal(t, "Clause 4 caps liability.\n\nClause 9 is governed by Delaware law.", note.Content)

	body, ct = multipartBody(t, "file", "sheet.xlsx", []byte("PK"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/notes/upload", body)
	req.Header.Set("Content-Type", ct)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"INVALID_FILE"`)
}

func TestNotebookHandler_Validation(t *testing.T) {
	router := newTestRouter(t, new(MockDocumentService))

	rr := do(t, router, http.MethodPost, "/api/v1/notebooks/missing/notes", `{"content":"orphan"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks", `{"title":"Q"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var nb domain.Notebook
	decodeBody(t, rr, &nb)

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/ask", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/notebooks/"+nb.ID+"/notes", `{"title":"empty","content":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
