package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/business-discovery/internal/config"
	"github.com/JakeFAU/business-discovery/internal/storage/local"
	"github.com/JakeFAU/business-discovery/internal/storage/memory"
	"github.com/JakeFAU/business-discovery/internal/storage/sqlite"
)

func TestOpenDocuments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	docs, closeFn, err := OpenDocuments(ctx, config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.IsType(t, &memory.DocumentStore{}, docs)
	require.NoError(t, closeFn())

	docs, closeFn, err = OpenDocuments(ctx, config.StoreConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "docs.db"),
	})
	require.NoError(t, err)
	require.IsType(t, &sqlite.DocumentStore{}, docs)
	require.NoError(t, closeFn())

	_, _, err = OpenDocuments(ctx, config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
}

func TestOpenObjects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	objs, _, err := OpenObjects(ctx, config.MessagesConfig{})
	require.NoError(t, err)
	require.IsType(t, &memory.ObjectStore{}, objs)

	objs, _, err = OpenObjects(ctx, config.MessagesConfig{Driver: config.DriverLocal, BaseDir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &local.ObjectStore{}, objs)

	_, _, err = OpenObjects(ctx, config.MessagesConfig{Driver: "s3"})
	require.Error(t, err)
}
