package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Store implements ports.ObjectStore in memory. It fabricates the same
// public URL shape as the GCS adapter so handler tests can assert on
// the real URL format.
type Store struct {
	bucket  string
	objects map[string][]byte
	types   map[string]string
	mu      sync.RWMutex
}

// NewStore creates a new in-memory object store
func NewStore(bucket string) *Store {
	return &Store{
		bucket:  bucket,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Upload stores the object bytes and returns the public URL
func (s *Store) Upload(ctx context.Context, object, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[object] = data
	s.types[object] = contentType

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object), nil
}

// Object returns a stored object's bytes and content type
func (s *Store) Object(name string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[name]
	return data, s.types[name], ok
}

// Len returns the number of stored objects
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.objects)
}

// Close releases nothing for the in-memory store
func (s *Store) Close() error {
	return nil
}
