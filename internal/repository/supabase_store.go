package repository

import (
	"legal-doc-analyzer/internal/domain"
)

// SupabaseStore bundles the Supabase repositories into a domain.Store.
type SupabaseStore struct {
	*SupabaseJobRepository
	*SupabaseNotebookRepository
}

var _ domain.Store = (*SupabaseStore)(nil)

// NewSupabaseStore initialises the client and builds both repositories on it.
func NewSupabaseStore(config domain.Config, logger domain.Logger) (*SupabaseStore, error) {
	client := NewSupabaseClient(config, logger)
	if err := client.Initialize(); err != nil {
		return nil, err
	}
	return &SupabaseStore{
		SupabaseJobRepository:      NewSupabaseJobRepository(client, logger),
		SupabaseNotebookRepository: NewSupabaseNotebookRepository(client, logger),
	}, nil
}

// Close is a no-op: PostgREST calls are plain HTTP requests.
func (s *SupabaseStore) Close() error { return nil }
