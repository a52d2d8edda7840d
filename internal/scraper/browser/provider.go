// Package browser implements the remote-browser DOM extraction provider: it
// opens a hosted Chrome session, drives a Maps listing with chromedp, and
// reads the business and its reviews through cascading selector strategies.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/metrics"
	"github.com/JakeFAU/business-discovery/internal/policy/ratelimit"
	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/scraper"
)

// Sleeper waits for d unless ctx ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Timings holds the fixed waits of the extraction flow.
type Timings struct {
	Settle          time.Duration
	ConsentWait     time.Duration
	ResultSettle    time.Duration
	PollAttempts    int
	PollInterval    time.Duration
	MinPanelHeight  int
	ScrollPasses    int
	ScrollDelay     time.Duration
	ExpandDelay     time.Duration
	SortMenuDelay   time.Duration
	SortApplyDelay  time.Duration
	LowestScrolls   int
	ReleaseTimeout  time.Duration
	LowestRatingRun bool
}

// DefaultTimings returns the production waits.
func DefaultTimings() Timings {
	return Timings{
		Settle:          12 * time.Second,
		ConsentWait:     3 * time.Second,
		ResultSettle:    6 * time.Second,
		PollAttempts:    12,
		PollInterval:    time.Second,
		MinPanelHeight:  600,
		ScrollPasses:    6,
		ScrollDelay:     1500 * time.Millisecond,
		ExpandDelay:     time.Second,
		SortMenuDelay:   2 * time.Second,
		SortApplyDelay:  3 * time.Second,
		LowestScrolls:   4,
		ReleaseTimeout:  10 * time.Second,
		LowestRatingRun: true,
	}
}

// Config wires the provider's collaborators.
type Config struct {
	Sessions    SessionService
	Opener      Opener
	Sleeper     Sleeper
	Limiter     *ratelimit.Limiter
	Logger      *zap.Logger
	Timings     Timings
	MaxParallel int
	Now         func() time.Time
}

// Provider implements scraper.Provider on top of a remote browser.
type Provider struct {
	cfg   Config
	slots chan struct{}
	log   *zap.Logger
}

// New validates cfg and returns a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Sessions == nil || cfg.Opener == nil || cfg.Sleeper == nil {
		return nil, errors.New("browser provider requires sessions, opener and sleeper")
	}
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}
	return &Provider{cfg: cfg, slots: slots, log: cfg.Logger.Named("browser")}, nil
}

// Name implements scraper.Provider.
func (*Provider) Name() string { return scraper.NameBrowser }

// Scrape opens a session, extracts the listing at sourceURL and always
// releases the session. Failures after the session opened carry its ids.
func (p *Provider) Scrape(ctx context.Context, sourceURL string) (scraper.Result, error) {
	if err := p.acquire(ctx); err != nil {
		return scraper.Result{}, &scraper.ProviderError{Provider: scraper.NameBrowser, Err: err}
	}
	defer p.release()

	if err := p.cfg.Limiter.Wait(ctx, scraper.NameBrowser); err != nil {
		return scraper.Result{}, &scraper.ProviderError{Provider: scraper.NameBrowser, Err: err}
	}

	sess, err := p.cfg.Sessions.Create(ctx)
	if err != nil {
		return scraper.Result{}, &scraper.ProviderError{Provider: scraper.NameBrowser, Err: err}
	}
	metrics.IncActiveSessions()
	defer p.releaseSession(ctx, sess)

	log := p.log.With(zap.String("session_id", sess.ID), zap.String("url", sourceURL))
	if sess.ID != "" {
		log.Info("browser session opened", zap.String("replay_url", sess.ReplayURL))
		p.announce(ctx, sess, log)
	}

	fail := func(err error) (scraper.Result, error) {
		log.Warn("browser extraction failed", zap.Error(err))
		return scraper.Result{}, &scraper.ProviderError{
			Provider:   scraper.NameBrowser,
			SessionID:  sess.ID,
			SessionURL: sess.ReplayURL,
			Err:        err,
		}
	}

	page, closePage, err := p.cfg.Opener.Open(ctx, sess)
	if err != nil {
		return fail(err)
	}
	defer closePage()

	rec, err := p.extract(ctx, page, sourceURL, log)
	if err != nil {
		return fail(err)
	}
	log.Info("browser extraction finished",
		zap.String("name", rec.Name),
		zap.Int("reviews", len(rec.Reviews)))
	return scraper.Result{Business: rec, SessionID: sess.ID, SessionURL: sess.ReplayURL}, nil
}

// announce emits the session event, with a live view when the session
// service offers one.
func (p *Provider) announce(ctx context.Context, sess Session, log *zap.Logger) {
	live := sess.ReplayURL
	if viewer, ok := p.cfg.Sessions.(LiveViewer); ok {
		if u, err := viewer.LiveViewURL(ctx, sess.ID); err != nil {
			log.Debug("live view unavailable", zap.Error(err))
		} else if u != "" {
			live = u
		}
	}
	progress.FromContext(ctx).Emit(progress.SessionWithLiveView(
		progress.RunIDFromContext(ctx), p.cfg.Now().UTC(), sess.ID, sess.ReplayURL, live))
}

func (p *Provider) extract(ctx context.Context, page Page, sourceURL string, log *zap.Logger) (business.Record, error) {
	t := p.cfg.Timings

	if err := page.Navigate(ctx, sourceURL); err != nil {
		return business.Record{}, fmt.Errorf("navigate: %w", err)
	}
	if err := p.wait(ctx, t.Settle); err != nil {
		return business.Record{}, err
	}

	if p.evalBool(ctx, page, consentScript) {
		log.Debug("consent interstitial dismissed")
		if err := p.wait(ctx, t.ConsentWait); err != nil {
			return business.Record{}, err
		}
	}

	title, err := page.Title(ctx)
	if err != nil {
		return business.Record{}, fmt.Errorf("read title: %w", err)
	}
	if isSearchPage(title) && p.evalBool(ctx, page, firstResultScript) {
		log.Debug("search page detected, opened first result", zap.String("title", title))
		if err := p.wait(ctx, t.ResultSettle); err != nil {
			return business.Record{}, err
		}
	}

	raw := map[string]string{}
	if err := page.Evaluate(ctx, scalarScript, &raw); err != nil {
		log.Warn("scalar extraction failed, continuing with empty fields", zap.Error(err))
		raw = map[string]string{}
	}
	rec := scalarsToRecord(raw, sourceURL)

	set := newReviewSet()
	if err := p.collectReviews(ctx, page, set, t.ScrollPasses, log); err != nil {
		return business.Record{}, err
	}

	if t.LowestRatingRun && len(set.reviews) > 0 {
		if err := p.collectLowest(ctx, page, set, log); err != nil {
			return business.Record{}, err
		}
	}
	rec.Reviews = set.list()
	return rec, nil
}

// collectReviews opens the panel, waits for it to populate, scrolls, expands,
// and merges whatever is visible into set.
func (p *Provider) collectReviews(ctx context.Context, page Page, set *reviewSet, scrolls int, log *zap.Logger) error {
	var opener string
	if err := page.Evaluate(ctx, openReviewsScript, &opener); err != nil {
		log.Debug("review panel opener failed", zap.Error(err))
	}
	log.Debug("review panel opener", zap.String("strategy", opener), zap.Bool("clicked", opener != ""))

	if err := p.pollReviews(ctx, page); err != nil {
		return err
	}
	if err := p.scroll(ctx, page, scrolls); err != nil {
		return err
	}
	if err := p.expand(ctx, page); err != nil {
		return err
	}

	var raw []rawReview
	if err := page.Evaluate(ctx, extractReviewsScript, &raw); err != nil {
		log.Warn("review extraction failed", zap.Error(err))
		return nil
	}
	added := set.add(raw)
	log.Debug("reviews extracted", zap.Int("seen", len(raw)), zap.Int("added", added))
	return nil
}

func (p *Provider) collectLowest(ctx context.Context, page Page, set *reviewSet, log *zap.Logger) error {
	t := p.cfg.Timings
	if !p.evalBool(ctx, page, openSortScript) {
		log.Debug("sort control not found, skipping lowest-rating pass")
		return nil
	}
	if err := p.wait(ctx, t.SortMenuDelay); err != nil {
		return err
	}
	if !p.evalBool(ctx, page, selectLowestScript) {
		log.Debug("lowest-rating option not found")
		return nil
	}
	if err := p.wait(ctx, t.SortApplyDelay); err != nil {
		return err
	}
	before := len(set.reviews)
	if err := p.scroll(ctx, page, t.LowestScrolls); err != nil {
		return err
	}
	if err := p.expand(ctx, page); err != nil {
		return err
	}
	var raw []rawReview
	if err := page.Evaluate(ctx, extractReviewsScript, &raw); err != nil {
		log.Warn("lowest-rating extraction failed", zap.Error(err))
		return nil
	}
	set.add(raw)
	log.Debug("lowest-rating pass merged", zap.Int("before", before), zap.Int("after", len(set.reviews)))
	return nil
}

type readiness struct {
	Count  int `json:"count"`
	Height int `json:"height"`
}

func (p *Provider) pollReviews(ctx context.Context, page Page) error {
	t := p.cfg.Timings
	for i := 0; i < t.PollAttempts; i++ {
		var r readiness
		if err := page.Evaluate(ctx, reviewsReadyScript, &r); err == nil {
			if r.Count > 0 || r.Height >= t.MinPanelHeight {
				return nil
			}
		}
		if err := p.wait(ctx, t.PollInterval); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) scroll(ctx context.Context, page Page, passes int) error {
	for i := 0; i < passes; i++ {
		var scrolled bool
		_ = page.Evaluate(ctx, scrollReviewsScript, &scrolled) //nolint:errcheck // best-effort lazy load
		if err := p.wait(ctx, p.cfg.Timings.ScrollDelay); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) expand(ctx context.Context, page Page) error {
	var clicked int
	_ = page.Evaluate(ctx, expandReviewsScript, &clicked) //nolint:errcheck // best-effort expansion
	return p.wait(ctx, p.cfg.Timings.ExpandDelay)
}

func (p *Provider) evalBool(ctx context.Context, page Page, script string) bool {
	var ok bool
	if err := page.Evaluate(ctx, script, &ok); err != nil {
		return false
	}
	return ok
}

func (p *Provider) wait(ctx context.Context, d time.Duration) error {
	if err := p.cfg.Sleeper.Sleep(ctx, d); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	return nil
}

// releaseSession ends the session even when ctx was cancelled.
func (p *Provider) releaseSession(ctx context.Context, sess Session) {
	defer metrics.DecActiveSessions()
	timeout := p.cfg.Timings.ReleaseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := p.cfg.Sessions.Release(releaseCtx, sess.ID); err != nil {
		p.log.Warn("browser session release failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (p *Provider) acquire(ctx context.Context) error {
	if p.slots == nil {
		return nil
	}
	select {
	case p.slots <- struct{}{}:
		return nil
	default:
	}
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (p *Provider) release() {
	if p.slots == nil {
		return
	}
	select {
	case <-p.slots:
	default:
	}
}

// isSearchPage reports whether title belongs to a results list rather than a
// single place.
func isSearchPage(title string) bool {
	return title == "Google Maps" || !strings.Contains(title, " - Google Maps")
}
