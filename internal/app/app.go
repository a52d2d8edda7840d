// Package app builds and holds the long-lived services of the discovery
// service. It is the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/business-discovery/internal/analysis"
	"github.com/JakeFAU/business-discovery/internal/api"
	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/clock/system"
	"github.com/JakeFAU/business-discovery/internal/config"
	"github.com/JakeFAU/business-discovery/internal/discovery"
	"github.com/JakeFAU/business-discovery/internal/feedback"
	"github.com/JakeFAU/business-discovery/internal/id/uuid"
	"github.com/JakeFAU/business-discovery/internal/logging"
	"github.com/JakeFAU/business-discovery/internal/messagelog"
	"github.com/JakeFAU/business-discovery/internal/metrics"
	"github.com/JakeFAU/business-discovery/internal/policy/ratelimit"
	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/progress/sinks"
	"github.com/JakeFAU/business-discovery/internal/publisher"
	memorypublisher "github.com/JakeFAU/business-discovery/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/business-discovery/internal/publisher/pubsub"
	"github.com/JakeFAU/business-discovery/internal/retry"
	"github.com/JakeFAU/business-discovery/internal/scraper"
	"github.com/JakeFAU/business-discovery/internal/scraper/actor"
	"github.com/JakeFAU/business-discovery/internal/scraper/browser"
	"github.com/JakeFAU/business-discovery/internal/storage"
	"github.com/JakeFAU/business-discovery/internal/store"
	"github.com/JakeFAU/business-discovery/internal/tracing"
)

// DefaultTopic receives profile events when no Pub/Sub topic is configured.
const DefaultTopic = "business-discovery.profiles"

const shutdownTimeout = 10 * time.Second

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds the shared services.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  *system.Clock

	orchestrator *discovery.Orchestrator
	generator    *analysis.Generator
	repo         *store.Repository
	messages     *messagelog.Log
	hub          *progress.Hub
	server       *api.Server
	runIDs       *uuid.Generator

	closers []closer
}

// Report is the outcome of a single pipeline run.
type Report struct {
	Discovery discovery.Result  `json:"discovery"`
	Profile   *analysis.Profile `json:"profile,omitempty"`
}

// Build creates every dependency described by cfg. On failure anything
// already opened is closed again.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		runIDs: uuid.NewPrefixed("run_"),
	}
	if err := a.setup(ctx); err != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
		return nil, err
	}
	a.logger.Info("application built",
		zap.Bool("browser", cfg.BrowserEnabled()),
		zap.Bool("actor", cfg.ActorEnabled()),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("store", cfg.Store.Driver),
		zap.String("messages", cfg.Messages.Driver),
	)
	return a, nil
}

func (a *App) setup(ctx context.Context) error {
	metrics.Init()
	if a.cfg.Tracing.Enabled {
		if _, err := tracing.EnsureInitialized(ctx, tracing.Options{ServiceName: a.cfg.Tracing.ServiceName}); err != nil {
			return fmt.Errorf("tracer init failed: %w", err)
		}
		a.addCloser("tracing", tracing.Shutdown)
	}

	browserProvider, actorProvider, err := a.setupScrapers()
	if err != nil {
		return err
	}
	a.orchestrator, err = discovery.New(discovery.Config{
		Browser: browserProvider,
		Actor:   actorProvider,
		Clock:   a.clock,
		IDs:     uuid.NewPrefixed(business.IDPrefix),
		Logger:  a.logger,
	})
	if err != nil {
		return fmt.Errorf("orchestrator init failed: %w", err)
	}

	if err := a.setupAnalysis(ctx); err != nil {
		return err
	}
	if err := a.setupStorage(ctx); err != nil {
		return err
	}
	pub, topic, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress")},
		sinks.NewLogSink(a.logger),
		sinks.NewPublishSink(pub, topic),
	)
	// Registered after the publisher so it drains before the client closes.
	a.addCloser("progress hub", a.hub.Close)

	a.server = api.NewServer(api.Options{
		Discoverer: a.orchestrator,
		Analyzer:   a.generator,
		Repository: a.repo,
		Feedback:   feedback.NewRecorder(a.repo, a.clock, a.logger),
		Messages:   a.messages,
		Events:     a.hub,
		RunIDs:     a.runIDs,
		Clock:      a.clock,
		Config:     a.cfg,
		Logger:     a.logger,
	})
	return nil
}

// setupScrapers returns nil providers for disabled branches.
func (a *App) setupScrapers() (scraper.Provider, scraper.Provider, error) {
	var browserProvider, actorProvider scraper.Provider
	limiter := ratelimit.New(map[string]ratelimit.Rate{
		scraper.NameBrowser: {PerSecond: a.cfg.Browser.SessionsPerSecond, Burst: 1},
		scraper.NameActor:   {PerSecond: a.cfg.Actor.RequestsPerSec, Burst: 1},
	})

	if a.cfg.BrowserEnabled() {
		bc := a.cfg.Browser
		var sessions browser.SessionService = browser.LocalSessions{}
		if bc.Mode == config.BrowserModeRemote {
			client, err := browser.NewClient(browser.ClientConfig{
				BaseURL:       bc.BaseURL,
				APIKey:        bc.APIKey,
				ProjectID:     bc.ProjectID,
				ReplayBaseURL: bc.ReplayBaseURL,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("browser session client init failed: %w", err)
			}
			sessions = client
		}
		timings := browser.DefaultTimings()
		if bc.SettleSeconds > 0 {
			timings.Settle = config.Seconds(bc.SettleSeconds)
		}
		if bc.ReleaseTimeoutSecs > 0 {
			timings.ReleaseTimeout = config.Seconds(bc.ReleaseTimeoutSecs)
		}
		timings.LowestRatingRun = bc.LowestRatingPass
		p, err := browser.New(browser.Config{
			Sessions: sessions,
			Opener: &browser.ChromeOpener{
				UserAgent:  bc.UserAgent,
				NavTimeout: config.Seconds(bc.NavTimeoutSeconds),
			},
			Sleeper:     a.clock,
			Limiter:     limiter,
			Logger:      a.logger,
			Timings:     timings,
			MaxParallel: bc.MaxParallel,
			Now:         a.clock.Now,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("browser provider init failed: %w", err)
		}
		browserProvider = p
	}

	if a.cfg.ActorEnabled() {
		ac := a.cfg.Actor
		client := actor.NewClient(ac.BaseURL, ac.Token,
			&http.Client{Timeout: config.Seconds(ac.TimeoutSeconds) + config.Seconds(ac.WaitSeconds)},
			retry.NewExponentialPolicy().WithMaxAttempts(ac.MaxRetries),
		)
		p, err := actor.New(actor.Config{
			API:          client,
			ActorID:      ac.ActorID,
			MaxReviews:   ac.MaxReviews,
			WaitCeiling:  config.Seconds(ac.WaitSeconds),
			PollInterval: config.Seconds(ac.PollIntervalSec),
			Limiter:      limiter,
			Sleeper:      a.clock,
			Logger:       a.logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("actor provider init failed: %w", err)
		}
		actorProvider = p
	}
	return browserProvider, actorProvider, nil
}

func (a *App) setupAnalysis(ctx context.Context) error {
	lc := a.cfg.LLM
	var completer analysis.Completer
	switch lc.Provider {
	case config.LLMProviderOpenAI:
		c, err := analysis.NewOpenAICompleter(lc.APIKey, lc.Model, lc.Temperature)
		if err != nil {
			return fmt.Errorf("openai completer init failed: %w", err)
		}
		completer = c
	case config.LLMProviderGemini:
		c, err := analysis.NewGenAICompleter(ctx, lc.APIKey, lc.Model, lc.Temperature)
		if err != nil {
			return fmt.Errorf("gemini completer init failed: %w", err)
		}
		completer = c
	}
	g, err := analysis.NewGenerator(analysis.Config{
		Completer: completer,
		Variant:   analysis.HarnessVariant(lc.HarnessVariant),
		Clock:     a.clock,
		IDs:       uuid.NewPrefixed("task-"),
		Timeout:   config.Seconds(lc.TimeoutSeconds),
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("generator init failed: %w", err)
	}
	a.generator = g
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	docs, closeDocs, err := storage.OpenDocuments(ctx, a.cfg.Store)
	if err != nil {
		return fmt.Errorf("document store init failed: %w", err)
	}
	a.addCloser("document store", func(context.Context) error { return closeDocs() })
	a.repo = store.NewRepository(docs)

	objects, closeObjects, err := storage.OpenObjects(ctx, a.cfg.Messages)
	if err != nil {
		return fmt.Errorf("object store init failed: %w", err)
	}
	a.addCloser("object store", func(context.Context) error { return closeObjects() })
	a.messages = messagelog.New(objects, a.clock)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (publisher.Publisher, string, error) {
	ps := a.cfg.PubSub
	if ps.TopicName == "" {
		a.logger.Info("using in-memory publisher; profile events stay in process")
		return memorypublisher.New(), DefaultTopic, nil
	}
	pub, err := gcppublisher.Dial(ctx, ps.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.addCloser("pubsub publisher", func(context.Context) error { return pub.Close() })
	a.logger.Info("publishing profile events to pubsub", zap.String("topic", ps.TopicName))
	return pub, ps.TopicName, nil
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Discover runs the pipeline once outside of HTTP. Progress goes to emit and
// the hub; the results are stored like an API call would store them.
func (a *App) Discover(ctx context.Context, sourceURL string, analyze bool, emit progress.Emitter) Report {
	runID, err := a.runIDs.NewID()
	if err != nil {
		runID = fmt.Sprintf("run_%d", a.clock.Now().UnixNano())
	}
	ctx = progress.WithRunID(ctx, runID)
	ctx = progress.WithEmitter(ctx, progress.Multi(emit, a.hub))

	res := a.orchestrator.Discover(ctx, sourceURL)
	if err := a.repo.SaveBusiness(ctx, res.Business); err != nil {
		a.logger.Warn("store business failed", zap.String("business_id", res.Business.ID), zap.Error(err))
	}
	report := Report{Discovery: res}
	if !analyze {
		return report
	}

	profile := a.generator.ProfileOrMock(ctx, res.Business, res.RemoteSessionID, res.RemoteSessionURL)
	if err := a.repo.SaveProfile(ctx, profile); err != nil {
		a.logger.Warn("store profile failed", zap.String("business_id", profile.Business.ID), zap.Error(err))
	}
	a.hub.Emit(progress.Event{RunID: runID, TS: a.clock.Now(), Name: progress.NameComplete, Data: publisher.ProfileCompleted{
		RunID:        runID,
		BusinessID:   profile.Business.ID,
		Name:         profile.Business.Name,
		Provider:     res.Provider,
		Tasks:        len(profile.Tasks),
		MockAnalysis: profile.MockAnalysis,
		SessionID:    res.RemoteSessionID,
	}})
	report.Profile = &profile
	return report
}

// Serve runs the HTTP server until ctx ends, then shuts it down and closes
// every service.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	a.Close(closeCtx)
	return err
}

// Close releases every service in reverse build order. Failures are logged.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	// Syncing stderr-backed loggers fails on some platforms; nothing to do.
	_ = a.logger.Sync()
}
