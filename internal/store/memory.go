package store

import (
	"context"
	"sync"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

// MemoryStore keeps everything in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	results   map[string]*domain.AnalysisResult
	notebooks map[string]*domain.Notebook
	notes     map[string]map[string]*domain.Note
}

var _ domain.Store = (*MemoryStore)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*domain.Job),
		results:   make(map[string]*domain.AnalysisResult),
		notebooks: make(map[string]*domain.Notebook),
		notes:     make(map[string]map[string]*domain.Note),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, eris.Wrapf(domain.ErrJobNotFound, "job %s", id)
	}
	return job.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, job *domain.Job) error {
	if job == nil {
		return eris.New("job is required")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, id string, expected domain.JobStatus, next *domain.Job) (bool, error) {
	if err := domain.ValidateSwap(id, expected, next); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return false, eris.Wrapf(domain.ErrJobNotFound, "job %s", id)
	}
	if current.Status != expected {
		return false, nil
	}
	s.jobs[id] = next.Clone()
	return true, nil
}

func (s *MemoryStore) SaveResult(_ context.Context, result *domain.AnalysisResult) error {
	if result == nil || result.DocumentID == "" {
		return eris.New("result with document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.DocumentID] = cloneResult(result)
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, documentID string) (*domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[documentID]
	if !ok {
		return nil, eris.Wrapf(domain.ErrResultNotFound, "document %s", documentID)
	}
	return cloneResult(result), nil
}

func (s *MemoryStore) CreateNotebook(_ context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *nb
	s.notebooks[nb.ID] = &c
	return nil
}

func (s *MemoryStore) GetNotebook(_ context.Context, id string) (*domain.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nb, ok := s.notebooks[id]
	if !ok {
		return nil, eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", id)
	}
	c := *nb
	return &c, nil
}

func (s *MemoryStore) ListNotebooks(_ context.Context) ([]*domain.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Notebook, 0, len(s.notebooks))
	for _, nb := range s.notebooks {
		c := *nb
		out = append(out, &c)
	}
	sortNotebooks(out)
	return out, nil
}

func (s *MemoryStore) UpdateNotebook(_ context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notebooks[nb.ID]; !ok {
		return eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", nb.ID)
	}
	c := *nb
	s.notebooks[nb.ID] = &c
	return nil
}

func (s *MemoryStore) DeleteNotebook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notebooks[id]; !ok {
		return eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", id)
	}
	delete(s.notebooks, id)
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) CreateNote(_ context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notebooks[note.NotebookID]; !ok {
		return eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", note.NotebookID)
	}
	if s.notes[note.NotebookID] == nil {
		s.notes[note.NotebookID] = make(map[string]*domain.Note)
	}
	c := *note
	s.notes[note.NotebookID][note.ID] = &c
	return nil
}

func (s *MemoryStore) GetNote(_ context.Context, notebookID, noteID string) (*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[notebookID][noteID]
	if !ok {
		return nil, eris.Wrapf(domain.ErrNoteNotFound, "note %s", noteID)
	}
	c := *note
	return &c, nil
}

func (s *MemoryStore) ListNotes(_ context.Context, notebookID string) ([]*domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.notebooks[notebookID]; !ok {
		return nil, eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", notebookID)
	}
	out := make([]*domain.Note, 0, len(s.notes[notebookID]))
	for _, note := range s.notes[notebookID] {
		c := *note
		out = append(out, &c)
	}
	sortNotes(out)
	return out, nil
}

func (s *MemoryStore) UpdateNote(_ context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[note.NotebookID][note.ID]; !ok {
		return eris.Wrapf(domain.ErrNoteNotFound, "note %s", note.ID)
	}
	c := *note
	s.notes[note.NotebookID][note.ID] = &c
	return nil
}

func (s *MemoryStore) DeleteNote(_ context.Context, notebookID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[notebookID][noteID]; !ok {
		return eris.Wrapf(domain.ErrNoteNotFound, "note %s", noteID)
	}
	delete(s.notes[notebookID], noteID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneResult(r *domain.AnalysisResult) *domain.AnalysisResult {
	c := *r
	c.Clauses = make([]domain.Clause, len(r.Clauses))
	copy(c.Clauses, r.Clauses)
	return &c
}
