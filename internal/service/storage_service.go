package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"legal-doc-analyzer/internal/domain"

	"github.com/rotisserie/eris"
)

// MemoryFileStore keeps uploads in process memory.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

var _ domain.FileStore = (*MemoryFileStore)(nil)

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{files: make(map[string][]byte)}
}

func (s *MemoryFileStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = bytes.Clone(data)
	return nil
}

func (s *MemoryFileStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	if !ok {
		return nil, eris.Wrapf(domain.ErrFileNotFound, "file %s", key)
	}
	return bytes.Clone(data), nil
}

func (s *MemoryFileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

// LocalFileStore writes uploads under a directory on disk.
type LocalFileStore struct {
	dir string
}

var _ domain.FileStore = (*LocalFileStore)(nil)

// NewLocalFileStore creates dir if needed.
func NewLocalFileStore(dir string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, eris.Wrapf(err, "failed to create upload dir %s", dir)
	}
	return &LocalFileStore{dir: dir}, nil
}

func (s *LocalFileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *LocalFileStore) Save(_ context.Context, key string, data []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return eris.Wrapf(err, "failed to write %s", key)
	}
	return eris.Wrapf(os.Rename(tmp, s.path(key)), "failed to commit %s", key)
}

func (s *LocalFileStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(domain.ErrFileNotFound, "file %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", key)
	}
	return data, nil
}

func (s *LocalFileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

// SupabaseStorage keeps uploads in a Supabase Storage bucket over its REST API.
type SupabaseStorage struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

var _ domain.FileStore = (*SupabaseStorage)(nil)

func NewStorageService(baseURL, apiKey, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *SupabaseStorage) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)
}

func (s *SupabaseStorage) do(ctx context.Context, method, key string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.objectURL(key), body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build storage request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/pdf")
		req.Header.Set("x-upsert", "true")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "storage %s %s", method, key)
	}
	return resp, nil
}

func (s *SupabaseStorage) Save(ctx context.Context, key string, data []byte) error {
	resp, err := s.do(ctx, http.MethodPost, key, bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("storage upload failed: status %d", resp.StatusCode)
	}
	return nil
}

func (s *SupabaseStorage) Load(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		// Storage answers 400 with "Object not found" for missing keys.
		return nil, eris.Wrapf(domain.ErrFileNotFound, "file %s", key)
	case resp.StatusCode >= 300:
		return nil, eris.Errorf("storage download failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to read storage object")
	}
	return data, nil
}

func (s *SupabaseStorage) Delete(ctx context.Context, key string) error {
	resp, err := s.do(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return eris.Errorf("storage delete failed: status %d", resp.StatusCode)
	}
	return nil
}
