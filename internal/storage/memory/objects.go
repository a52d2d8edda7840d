package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/business-discovery/internal/store"
)

// ObjectStore is an in-memory store.ObjectStore.
type ObjectStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewObjectStore creates an empty ObjectStore.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{data: make(map[string][]byte)}
}

// GetObject returns a copy of the object at path.
func (s *ObjectStore) GetObject(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// PutObject stores a copy of data at path.
func (s *ObjectStore) PutObject(_ context.Context, path, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), data...)
	return nil
}

// DeleteObject removes path. Missing objects are not an error.
func (s *ObjectStore) DeleteObject(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path)
	return nil
}
