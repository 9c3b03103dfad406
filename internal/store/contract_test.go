package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func backends(t *testing.T) map[string]domain.Store {
	return map[string]domain.Store{
		"memory": NewMemory(),
		"sqlite": newTestSQLiteStore(t),
	}
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newJob(id string, status domain.JobStatus) *domain.Job {
	return &domain.Job{
		ID:        id,
		Filename:  "contract.pdf",
		Status:    status,
		Message:   "Queued for analysis",
		FileSize:  1024,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func TestStore_JobRoundTrip(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.Get(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrJobNotFound)

			job := newJob("job-1", domain.JobStatusPending)
			require.NoError(t, st.Set(ctx, job))

			got, err := st.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, job, got)

			got.Message = "mutated"
			again, err := st.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, "Queued for analysis", again.Message)
		})
	}
}

func TestStore_SetRejectsInvalidJob(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := st.Set(context.Background(), &domain.Job{ID: "", Status: domain.JobStatusPending})
			assert.Error(t, err)
		})
	}
}

func TestStore_CompareAndSwap(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Set(ctx, newJob("job-1", domain.JobStatusPending)))

			next := newJob("job-1", domain.JobStatusProcessing)
			next.Message = "Upload successful, analysis starting"
			ok, err := st.CompareAndSwap(ctx, "job-1", domain.JobStatusPending, next)
			require.NoError(t, err)
			assert.True(t, ok)

			// Stale expectation loses.
			ok, err = st.CompareAndSwap(ctx, "job-1", domain.JobStatusPending, newJob("job-1", domain.JobStatusFailed))
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := st.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusProcessing, got.Status)
			assert.Equal(t, "Upload successful, analysis starting", got.Message)

			_, err = st.CompareAndSwap(ctx, "nope", domain.JobStatusPending, newJob("nope", domain.JobStatusProcessing))
			assert.ErrorIs(t, err, domain.ErrJobNotFound)
		})
	}
}

func TestStore_CompareAndSwapRejectsIllegalTransitions(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Set(ctx, newJob("job-1", domain.JobStatusCompleted)))

			_, err := st.CompareAndSwap(ctx, "job-1", domain.JobStatusCompleted, newJob("job-1", domain.JobStatusFailed))
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)

			_, err = st.CompareAndSwap(ctx, "job-1", domain.JobStatusCompleted, newJob("job-1", domain.JobStatusCompleted))
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)

			_, err = st.CompareAndSwap(ctx, "job-1", domain.JobStatusCompleted, newJob("other", domain.JobStatusCompleted))
			assert.Error(t, err)
		})
	}
}

func TestStore_ConcurrentSwapHasOneWinner(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Set(ctx, newJob("job-1", domain.JobStatusProcessing)))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					status := domain.JobStatusCompleted
					if i%2 == 0 {
						status = domain.JobStatusFailed
					}
					next := newJob("job-1", status)
					next.Message = fmt.Sprintf("writer %d", i)
					ok, err := st.CompareAndSwap(ctx, "job-1", domain.JobStatusProcessing, next)
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
			got, err := st.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.True(t, got.Status.Terminal())
		})
	}
}

func TestStore_Results(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.GetResult(ctx, "doc-1")
			assert.ErrorIs(t, err, domain.ErrResultNotFound)

			result := &domain.AnalysisResult{
				DocumentID: "doc-1",
				FullText:   "The Supplier shall indemnify the Buyer.",
				Clauses: []domain.Clause{{
					ID:         "clause-1",
					PageNumber: 1,
					Text:       "The Supplier shall indemnify the Buyer.",
					Score:      0.81,
					Category:   domain.CategoryRed,
					Type:       "Indemnification",
					Entities:   []domain.Entity{},
					LegalTerms: []domain.LegalTerm{},
					Source:     domain.ClauseSourceRules,
				}},
				SummaryText: "summary",
				Stats:       domain.DocumentStats{Pages: 1, Words: 6, Clauses: 1, Red: 1},
				CreatedAt:   base,
			}
			require.NoError(t, st.SaveResult(ctx, result))

			got, err := st.GetResult(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, result, got)

			result.SummaryText = "second run"
			require.NoError(t, st.SaveResult(ctx, result))
			got, err = st.GetResult(ctx, "doc-1")
			require.NoError(t, err)
			assert.Equal(t, "second run", got.SummaryText)
		})
	}
}

func TestStore_NotebooksAndNotes(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			older := &domain.Notebook{ID: "nb-1", Title: "Leases", CreatedAt: base, UpdatedAt: base}
			newer := &domain.Notebook{ID: "nb-2", Title: "Travel", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}
			require.NoError(t, st.CreateNotebook(ctx, older))
			require.NoError(t, st.CreateNotebook(ctx, newer))

			list, err := st.ListNotebooks(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "nb-2", list[0].ID)

			older.Description = "All lease agreements"
			older.UpdatedAt = base.Add(2 * time.Hour)
			require.NoError(t, st.UpdateNotebook(ctx, older))
			got, err := st.GetNotebook(ctx, "nb-1")
			require.NoError(t, err)
			assert.Equal(t, "All lease agreements", got.Description)

			note := &domain.Note{
				ID: "n-1", NotebookID: "nb-1", Title: "Rent", Content: "Rent is due monthly",
				NoteType: domain.NoteTypeText, WordCount: 4, CreatedAt: base, UpdatedAt: base,
			}
			require.NoError(t, st.CreateNote(ctx, note))
			err = st.CreateNote(ctx, &domain.Note{ID: "n-x", NotebookID: "missing", Title: "x"})
			assert.ErrorIs(t, err, domain.ErrNotebookNotFound)

			note.Content = "Rent is due on the first"
			note.WordCount = 6
			note.UpdatedAt = base.Add(time.Minute)
			require.NoError(t, st.UpdateNote(ctx, note))

			gotNote, err := st.GetNote(ctx, "nb-1", "n-1")
			require.NoError(t, err)
			assert.Equal(t, note, gotNote)

			_, err = st.GetNote(ctx, "nb-2", "n-1")
			assert.ErrorIs(t, err, domain.ErrNoteNotFound)

			notes, err := st.ListNotes(ctx, "nb-1")
			require.NoError(t, err)
			assert.Len(t, notes, 1)

			require.NoError(t, st.DeleteNotebook(ctx, "nb-1"))
			_, err = st.GetNotebook(ctx, "nb-1")
			assert.ErrorIs(t, err, domain.ErrNotebookNotFound)
			_, err = st.GetNote(ctx, "nb-1", "n-1")
			assert.ErrorIs(t, err, domain.ErrNoteNotFound)

			assert.ErrorIs(t, st.DeleteNote(ctx, "nb-2", "n-1"), domain.ErrNoteNotFound)
			assert.ErrorIs(t, st.DeleteNotebook(ctx, "nb-1"), domain.ErrNotebookNotFound)
		})
	}
}
