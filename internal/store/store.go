package store

import (
	"context"
	"errors"
)

// ErrNotFound signals that the requested document or object does not exist.
var ErrNotFound = errors.New("not found")

// DocumentStore persists whole JSON documents by key. There are no partial
// updates; writers replace the full document.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
}

// ObjectStore persists opaque objects by path. It has no native append.
type ObjectStore interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
	PutObject(ctx context.Context, path, contentType string, data []byte) error
	DeleteObject(ctx context.Context, path string) error
}
