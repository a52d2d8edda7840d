// Package scraper defines the contract shared by the business data providers
// and the typed failure they report.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/business-discovery/internal/business"
)

// Provider names used in logs, metrics, and results.
const (
	NameBrowser = "browser"
	NameActor   = "actor"
	NameMock    = "mock"
)

var (
	// ErrEmptyDataset is returned when a provider finished but produced no record.
	ErrEmptyDataset = errors.New("provider returned no items")
	// ErrNotConfigured is returned when a provider lacks credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// Result is what a provider extracted for one listing URL.
type Result struct {
	Business   business.Record
	SessionID  string
	SessionURL string
}

// Provider scrapes a single business listing.
type Provider interface {
	Name() string
	Scrape(ctx context.Context, sourceURL string) (Result, error)
}

// ProviderError is a provider failure that may carry the remote session that
// was open when it happened, so callers can still offer a replay.
type ProviderError struct {
	Provider   string
	SessionID  string
	SessionURL string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s provider failed (session %s): %v", e.Provider, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s provider failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HasSession reports whether a remote session was opened before the failure.
func (e *ProviderError) HasSession() bool {
	return e != nil && (e.SessionID != "" || e.SessionURL != "")
}

// SessionFrom extracts session identifiers from err, if any.
func SessionFrom(err error) (id, url string, ok bool) {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.HasSession() {
		return perr.SessionID, perr.SessionURL, true
	}
	return "", "", false
}
