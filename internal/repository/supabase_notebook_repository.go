package repository

import (
	"context"
	"encoding/json"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
	postgrest "github.com/supabase-community/postgrest-go"
)

// SupabaseNotebookRepository implements domain.NotebookRepository on the
// notebooks and notes tables.
type SupabaseNotebookRepository struct {
	supabaseClient *SupabaseClient
	logger         domain.Logger
}

var _ domain.NotebookRepository = (*SupabaseNotebookRepository)(nil)

// NewSupabaseNotebookRepository creates a new Supabase notebook repository
func NewSupabaseNotebookRepository(supabaseClient *SupabaseClient, logger domain.Logger) *SupabaseNotebookRepository {
	return &SupabaseNotebookRepository{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

var newestFirst = &postgrest.OrderOpts{Ascending: false}

func (r *SupabaseNotebookRepository) CreateNotebook(_ context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	row := *nb
	row.Title = sanitizeText(row.Title)
	row.Description = sanitizeText(row.Description)
	if _, _, err := client.From("notebooks").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return eris.Wrap(err, "failed to insert notebook")
	}
	return nil
}

func (r *SupabaseNotebookRepository) GetNotebook(_ context.Context, id string) (*domain.Notebook, error) {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("notebooks").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get notebook %s", id)
	}

	var notebooks []domain.Notebook
	if err := json.Unmarshal(data, &notebooks); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal notebook")
	}
	if len(notebooks) == 0 {
		return nil, eris.Wrapf(domain.ErrNotebookNotFound, "notebook %s", id)
	}
	return &notebooks[0], nil
}

func (r *SupabaseNotebookRepository) ListNotebooks(_ context.Context) ([]*domain.Notebook, error) {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("notebooks").
		Select("*", "", false).
		Order("updated_at", newestFirst).
		Execute()
	if err != nil {
		return nil, eris.Wrap(err, "failed to list notebooks")
	}

	var notebooks []*domain.Notebook
	if err := json.Unmarshal(data, &notebooks); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal notebooks")
	}
	if notebooks == nil {
		notebooks = []*domain.Notebook{}
	}
	return notebooks, nil
}

func (r *SupabaseNotebookRepository) UpdateNotebook(_ context.Context, nb *domain.Notebook) error {
	if err := nb.Validate(); err != nil {
		return err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	update := map[string]interface{}{
		"title":       sanitizeText(nb.Title),
		"description": sanitizeText(nb.Description),
		"updated_at":  nb.UpdatedAt,
	}
	data, _, err := client.From("notebooks").
		Update(update, "representation", "").
		Eq("id", nb.ID).
		Execute()
	if err != nil {
		return eris.Wrapf(err, "failed to update notebook %s", nb.ID)
	}
	return affected(data, domain.ErrNotebookNotFound, "notebook "+nb.ID)
}

// DeleteNotebook removes the notes first; the notes table may not carry an
// ON DELETE CASCADE in projects created from older migrations.
func (r *SupabaseNotebookRepository) DeleteNotebook(ctx context.Context, id string) error {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}
	if _, err := r.GetNotebook(ctx, id); err != nil {
		return err
	}

	if _, _, err := client.From("notes").Delete("minimal", "").Eq("notebook_id", id).Execute(); err != nil {
		return eris.Wrapf(err, "failed to delete notes of notebook %s", id)
	}
	data, _, err := client.From("notebooks").Delete("representation", "").Eq("id", id).Execute()
	if err != nil {
		return eris.Wrapf(err, "failed to delete notebook %s", id)
	}
	return affected(data, domain.ErrNotebookNotFound, "notebook "+id)
}

func (r *SupabaseNotebookRepository) CreateNote(ctx context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	if _, err := r.GetNotebook(ctx, note.NotebookID); err != nil {
		return err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	row := *note
	row.Title = sanitizeText(row.Title)
	row.Content = sanitizeText(row.Content)
	if _, _, err := client.From("notes").Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return eris.Wrap(err, "failed to insert note")
	}
	return nil
}

func (r *SupabaseNotebookRepository) GetNote(_ context.Context, notebookID, noteID string) (*domain.Note, error) {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("notes").
		Select("*", "", false).
		Eq("id", noteID).
		Eq("notebook_id", notebookID).
		Execute()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get note %s", noteID)
	}

	var notes []domain.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal note")
	}
	if len(notes) == 0 {
		return nil, eris.Wrapf(domain.ErrNoteNotFound, "note %s", noteID)
	}
	return &notes[0], nil
}

func (r *SupabaseNotebookRepository) ListNotes(ctx context.Context, notebookID string) ([]*domain.Note, error) {
	if _, err := r.GetNotebook(ctx, notebookID); err != nil {
		return nil, err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("notes").
		Select("*", "", false).
		Eq("notebook_id", notebookID).
		Order("updated_at", newestFirst).
		Execute()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list notes of notebook %s", notebookID)
	}

	var notes []*domain.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal notes")
	}
	if notes == nil {
		notes = []*domain.Note{}
	}
	return notes, nil
}

func (r *SupabaseNotebookRepository) UpdateNote(_ context.Context, note *domain.Note) error {
	if err := note.Validate(); err != nil {
		return err
	}
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	update := map[string]interface{}{
		"title":      sanitizeText(note.Title),
		"content":    sanitizeText(note.Content),
		"word_count": note.WordCount,
		"updated_at": note.UpdatedAt,
	}
	data, _, err := client.From("notes").
		Update(update, "representation", "").
		Eq("id", note.ID).
		Eq("notebook_id", note.NotebookID).
		Execute()
	if err != nil {
		return eris.Wrapf(err, "failed to update note %s", note.ID)
	}
	return affected(data, domain.ErrNoteNotFound, "note "+note.ID)
}

func (r *SupabaseNotebookRepository) DeleteNote(_ context.Context, notebookID, noteID string) error {
	client, err := r.supabaseClient.DB()
	if err != nil {
		return err
	}

	data, _, err := client.From("notes").
		Delete("representation", "").
		Eq("id", noteID).
		Eq("notebook_id", notebookID).
		Execute()
	if err != nil {
		return eris.Wrapf(err, "failed to delete note %s", noteID)
	}
	return affected(data, domain.ErrNoteNotFound, "note "+noteID)
}

// affected maps an empty representation array to the given sentinel.
func affected(data []byte, notFound error, what string) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return eris.Wrap(err, "failed to unmarshal response")
	}
	if len(rows) == 0 {
		return eris.Wrap(notFound, what)
	}
	return nil
}
