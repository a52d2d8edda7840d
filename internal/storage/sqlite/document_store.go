// Package sqlite provides a single-file document store backed by the pure-Go
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/business-discovery/internal/store"
)

const defaultTable = "documents"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DocumentStore keeps one row per key.
type DocumentStore struct {
	db    *sql.DB
	table string
}

// New opens (or creates) the database at dsn and prepares the table.
func New(ctx context.Context, dsn, table string) (*DocumentStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	doc BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &DocumentStore{db: db, table: table}, nil
}

// Close closes the database.
func (s *DocumentStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Get loads the document stored under key.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE key = ?`, s.table)
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// Put upserts the document stored under key.
func (s *DocumentStore) Put(ctx context.Context, key string, doc []byte) error {
	query := fmt.Sprintf(`
INSERT INTO %s (key, doc, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key, doc); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
