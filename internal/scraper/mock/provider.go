// Package mock provides the deterministic last-resort business provider.
package mock

import (
	"context"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/scraper"
)

// Provider returns the fixture record for any URL. It never fails.
type Provider struct{}

// New returns a mock Provider.
func New() *Provider {
	return &Provider{}
}

// Name implements scraper.Provider.
func (*Provider) Name() string { return scraper.NameMock }

// Scrape returns the fixture with sourceURL recorded.
func (*Provider) Scrape(_ context.Context, sourceURL string) (scraper.Result, error) {
	return scraper.Result{Business: Record(sourceURL)}, nil
}

// Record builds the fixture for sourceURL.
func Record(sourceURL string) business.Record {
	rec := business.MockRecord()
	rec.SourceURL = sourceURL
	return rec
}
