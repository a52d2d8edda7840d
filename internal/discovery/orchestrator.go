// Package discovery runs the provider chain that turns a listing URL into a
// canonical business record. Discover never fails: every provider failure
// degrades to the next provider and finally to the built-in fixture.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/metrics"
	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/scraper"
	"github.com/JakeFAU/business-discovery/internal/scraper/mock"
)

// Result is the outcome of one discovery.
type Result struct {
	Business         business.Record `json:"business"`
	RemoteSessionID  string          `json:"remote_session_id,omitempty"`
	RemoteSessionURL string          `json:"remote_session_url,omitempty"`
	// Provider names the source of Business.
	Provider string `json:"provider"`
}

// Config wires the orchestrator. Browser and Actor are nil when their
// credentials are not configured.
type Config struct {
	Browser scraper.Provider
	Actor   scraper.Provider
	Clock   business.Clock
	IDs     business.IDGenerator
	Logger  *zap.Logger
}

// Orchestrator tries providers in fixed preference order.
type Orchestrator struct {
	browser scraper.Provider
	actor   scraper.Provider
	mock    scraper.Provider
	clock   business.Clock
	ids     business.IDGenerator
	log     *zap.Logger
}

// New returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Clock == nil || cfg.IDs == nil {
		return nil, errors.New("discovery requires a clock and id generator")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{
		browser: cfg.Browser,
		actor:   cfg.Actor,
		mock:    mock.New(),
		clock:   cfg.Clock,
		ids:     cfg.IDs,
		log:     cfg.Logger.Named("discovery"),
	}, nil
}

// Discover resolves sourceURL to a business record.
func (o *Orchestrator) Discover(ctx context.Context, sourceURL string) Result {
	emit := progress.FromContext(ctx)
	runID := progress.RunIDFromContext(ctx)
	emit.Emit(progress.Step(runID, o.clock.Now(), progress.StepConnecting, "Launching browser agent..."))

	res := o.chain(ctx, sourceURL)
	res.Business = o.finish(res.Business, sourceURL)
	emit.Emit(progress.Step(runID, o.clock.Now(), progress.StepExtractingInfo, "Business info extracted"))
	metrics.ObserveDiscovery(res.Provider, len(res.Business.Reviews))
	o.log.Info("discovery finished",
		zap.String("business_id", res.Business.ID),
		zap.String("provider", res.Provider),
		zap.String("session_id", res.RemoteSessionID),
		zap.Int("reviews", len(res.Business.Reviews)),
		zap.Bool("reviews_are_synthetic", res.Business.ReviewsAreSynthetic))
	return res
}

func (o *Orchestrator) chain(ctx context.Context, sourceURL string) Result {
	if o.browser != nil {
		out, err := o.attempt(ctx, o.browser, sourceURL)
		if err == nil {
			return Result{Business: out.Business, RemoteSessionID: out.SessionID, RemoteSessionURL: out.SessionURL, Provider: scraper.NameBrowser}
		}
		if id, url, ok := scraper.SessionFrom(err); ok {
			o.log.Warn("browser provider failed after opening a session, using fallback data",
				zap.String("session_id", id), zap.Error(err))
			return Result{Business: mock.Record(sourceURL), RemoteSessionID: id, RemoteSessionURL: url, Provider: scraper.NameMock}
		}
		o.log.Warn("browser provider failed, trying next provider", zap.Error(err))
	}

	if o.actor != nil {
		out, err := o.attempt(ctx, o.actor, sourceURL)
		if err == nil {
			return Result{Business: out.Business, Provider: scraper.NameActor}
		}
		o.log.Warn("actor provider failed, using fallback data", zap.Error(err))
	}

	out, err := o.attempt(ctx, o.mock, sourceURL)
	if err != nil {
		// The fixture provider has no failure path; keep the chain total anyway.
		out = scraper.Result{Business: mock.Record(sourceURL)}
	}
	return Result{Business: out.Business, Provider: scraper.NameMock}
}

// attempt runs one provider, converting panics into errors and recording the
// outcome.
func (o *Orchestrator) attempt(ctx context.Context, p scraper.Provider, sourceURL string) (res scraper.Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &scraper.ProviderError{Provider: p.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
		outcome := metrics.OutcomeSuccess
		switch {
		case errors.Is(err, scraper.ErrEmptyDataset):
			outcome = metrics.OutcomeEmpty
		case err != nil:
			outcome = metrics.OutcomeError
		}
		metrics.ObserveProvider(p.Name(), outcome, time.Since(start))
	}()
	return p.Scrape(ctx, sourceURL)
}

// finish assigns identity fields, normalizes, and supplements an empty
// review sample.
func (o *Orchestrator) finish(rec business.Record, sourceURL string) business.Record {
	id, err := o.ids.NewID()
	if err != nil || id == "" {
		o.log.Warn("id generation failed, using timestamp id", zap.Error(err))
		id = fmt.Sprintf("%s%d", business.IDPrefix, o.clock.Now().UnixNano())
	}
	rec.ID = id
	rec.SourceURL = sourceURL
	rec.ScrapedAt = o.clock.Now().UTC()
	rec = business.Normalize(rec)
	if rec.NeedsSupplement() {
		o.log.Info("listing reports reviews but none were scraped, adding sample reviews",
			zap.Int("review_count", rec.ReviewCount))
		rec.Reviews = business.SupplementalReviews()
		rec.ReviewsAreSynthetic = true
	}
	return rec
}
