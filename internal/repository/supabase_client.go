package repository

import (
	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
	"github.com/supabase-community/supabase-go"
)

// SupabaseClient owns the connection to a Supabase project.
type SupabaseClient struct {
	client *supabase.Client
	config domain.Config
	logger domain.Logger
}

// NewSupabaseClient creates an uninitialised Supabase client.
func NewSupabaseClient(config domain.Config, logger domain.Logger) *SupabaseClient {
	return &SupabaseClient{
		config: config,
		logger: logger,
	}
}

// Initialize establishes a connection to Supabase
func (s *SupabaseClient) Initialize() error {
	supabaseURL := s.config.GetSupabaseURL()
	supabaseKey := s.config.GetSupabaseKey()

	if supabaseURL == "" || supabaseKey == "" {
		return eris.New("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(supabaseURL, supabaseKey, &supabase.ClientOptions{})
	if err != nil {
		return eris.Wrap(err, "failed to create Supabase client")
	}

	s.client = client
	s.logger.Info("Supabase client initialized successfully", "url", supabaseURL)
	return nil
}

// DB returns the typed client for repository use.
func (s *SupabaseClient) DB() (*supabase.Client, error) {
	if s.client == nil {
		return nil, eris.New("supabase client not initialized")
	}
	return s.client, nil
}
