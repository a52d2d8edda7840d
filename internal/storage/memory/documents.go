// Package memory keeps documents and objects in process memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/business-discovery/internal/store"
)

// DocumentStore is an in-memory store.DocumentStore.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewDocumentStore constructs an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string][]byte)}
}

// Get returns a copy of the document stored under key.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

// Put replaces the document stored under key.
func (s *DocumentStore) Put(ctx context.Context, key string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), doc...)
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *DocumentStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
