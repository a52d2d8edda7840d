// Package actor implements the managed scraping-actor provider: it starts a
// hosted Google Maps scraper run, waits for it, and maps the first dataset
// item into a business record.
package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/policy/ratelimit"
	"github.com/JakeFAU/business-discovery/internal/scraper"
)

// Input is the fixed run configuration sent to the actor.
type Input struct {
	StartURLs                   []StartURL `json:"startUrls"`
	MaxCrawledPlacesPerSearch   int        `json:"maxCrawledPlacesPerSearch"`
	Language                    string     `json:"language"`
	MaxReviews                  int        `json:"maxReviews"`
	ReviewsSort                 string     `json:"reviewsSort"`
	ReviewsTranslation          string     `json:"reviewsTranslation"`
	ScrapeReviewerName          bool       `json:"scrapeReviewerName"`
	ScrapeReviewerID            bool       `json:"scrapeReviewerId"`
	ScrapeReviewerURL           bool       `json:"scrapeReviewerUrl"`
	ScrapeReviewID              bool       `json:"scrapeReviewId"`
	ScrapeReviewURL             bool       `json:"scrapeReviewUrl"`
	ScrapeResponseFromOwnerText bool       `json:"scrapeResponseFromOwnerText"`
}

// StartURL wraps a listing URL.
type StartURL struct {
	URL string `json:"url"`
}

// API is the subset of Client the provider uses.
type API interface {
	StartRun(ctx context.Context, actorID string, input any) (Run, error)
	GetRun(ctx context.Context, runID string, wait time.Duration) (Run, error)
	DatasetItems(ctx context.Context, datasetID string) ([]map[string]any, error)
}

// Sleeper waits between polls.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Config wires the provider.
type Config struct {
	API          API
	ActorID      string
	MaxReviews   int
	WaitCeiling  time.Duration
	PollInterval time.Duration
	Limiter      *ratelimit.Limiter
	Sleeper      Sleeper
	Logger       *zap.Logger
}

// Provider implements scraper.Provider.
type Provider struct {
	cfg Config
	log *zap.Logger
}

// New validates cfg and returns a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.API == nil || cfg.Sleeper == nil {
		return nil, errors.New("actor provider requires an api client and sleeper")
	}
	if cfg.ActorID == "" {
		return nil, errors.New("actor id is required")
	}
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = 30
	}
	if cfg.WaitCeiling <= 0 {
		cfg.WaitCeiling = 120 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, log: cfg.Logger.Named("actor")}, nil
}

// Name implements scraper.Provider.
func (*Provider) Name() string { return scraper.NameActor }

// Scrape runs the actor for sourceURL and maps the first result.
func (p *Provider) Scrape(ctx context.Context, sourceURL string) (scraper.Result, error) {
	rec, err := p.scrape(ctx, sourceURL)
	if err != nil {
		return scraper.Result{}, &scraper.ProviderError{Provider: scraper.NameActor, Err: err}
	}
	return scraper.Result{Business: rec}, nil
}

func (p *Provider) scrape(ctx context.Context, sourceURL string) (rec business.Record, err error) {
	if err := p.cfg.Limiter.Wait(ctx, scraper.NameActor); err != nil {
		return rec, err
	}

	run, err := p.cfg.API.StartRun(ctx, p.cfg.ActorID, p.input(sourceURL))
	if err != nil {
		return rec, err
	}
	log := p.log.With(zap.String("run_id", run.ID), zap.String("url", sourceURL))
	log.Info("actor run started")

	run, err = p.await(ctx, run)
	if err != nil {
		return rec, err
	}
	if run.Status != statusSucceeded {
		return rec, fmt.Errorf("actor run %s finished with status %s", run.ID, run.Status)
	}

	items, err := p.cfg.API.DatasetItems(ctx, run.DefaultDatasetID)
	if err != nil {
		return rec, err
	}
	if len(items) == 0 {
		return rec, scraper.ErrEmptyDataset
	}
	rec = mapPlace(items[0])
	log.Info("actor run mapped", zap.String("name", rec.Name), zap.Int("reviews", len(rec.Reviews)))
	return rec, nil
}

// await polls until run is terminal or the wait ceiling passes.
func (p *Provider) await(ctx context.Context, run Run) (Run, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.WaitCeiling)
	defer cancel()

	for !run.terminal() {
		deadline, _ := waitCtx.Deadline()
		remaining := time.Until(deadline)
		next, err := p.cfg.API.GetRun(waitCtx, run.ID, remaining)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return run, fmt.Errorf("actor run %s did not finish within %s: %w", run.ID, p.cfg.WaitCeiling, err)
			}
			return run, err
		}
		run = next
		if run.terminal() {
			break
		}
		if err := p.cfg.Sleeper.Sleep(waitCtx, p.cfg.PollInterval); err != nil {
			return run, fmt.Errorf("actor run %s did not finish within %s: %w", run.ID, p.cfg.WaitCeiling, err)
		}
	}
	return run, nil
}

func (p *Provider) input(sourceURL string) Input {
	return Input{
		StartURLs:                   []StartURL{{URL: sourceURL}},
		MaxCrawledPlacesPerSearch:   1,
		Language:                    "en",
		MaxReviews:                  p.cfg.MaxReviews,
		ReviewsSort:                 "newest",
		ReviewsTranslation:          "originalAndTranslated",
		ScrapeReviewerName:          true,
		ScrapeResponseFromOwnerText: true,
	}
}
