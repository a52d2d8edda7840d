// Package storage opens the configured document and object store backends.
package storage

import (
	"context"
	"fmt"

	"github.com/JakeFAU/business-discovery/internal/config"
	"github.com/JakeFAU/business-discovery/internal/storage/gcs"
	"github.com/JakeFAU/business-discovery/internal/storage/local"
	"github.com/JakeFAU/business-discovery/internal/storage/memory"
	"github.com/JakeFAU/business-discovery/internal/storage/postgres"
	"github.com/JakeFAU/business-discovery/internal/storage/sqlite"
	"github.com/JakeFAU/business-discovery/internal/store"
)

// CloseFunc releases a backend.
type CloseFunc func() error

func noopClose() error { return nil }

// OpenDocuments builds the document store selected by cfg.
func OpenDocuments(ctx context.Context, cfg config.StoreConfig) (store.DocumentStore, CloseFunc, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return memory.NewDocumentStore(), noopClose, nil
	case config.DriverPostgres:
		maxConns := int32(0)
		if cfg.MaxOpenConns > 0 {
			maxConns = int32(min(cfg.MaxOpenConns, 1<<15)) // #nosec G115 -- bounded above
		}
		s, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table, MaxConns: maxConns})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, func() error { s.Close(); return nil }, nil
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// OpenObjects builds the object store selected by cfg.
func OpenObjects(ctx context.Context, cfg config.MessagesConfig) (store.ObjectStore, CloseFunc, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return memory.NewObjectStore(), noopClose, nil
	case config.DriverLocal:
		s, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open local object store: %w", err)
		}
		return s, noopClose, nil
	case config.DriverGCS:
		s, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, nil, fmt.Errorf("open gcs object store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported messages driver %q", cfg.Driver)
	}
}
