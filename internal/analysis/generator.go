package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/metrics"
	"github.com/JakeFAU/business-discovery/internal/tracing"
)

// ErrNotConfigured is returned when no model is available.
var ErrNotConfigured = errors.New("analysis model not configured")

// Analysis kinds used in metrics and span names.
const (
	KindTasks     = "tasks"
	KindWorkflows = "workflows"
)

// Completer sends a system and user prompt to a model and returns the raw
// JSON text it produced.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ShortIDGenerator mints human-facing fallback ids.
type ShortIDGenerator interface {
	NewShortID(n int) string
}

// Config wires a Generator. Completer may be nil, in which case only the mock
// paths work.
type Config struct {
	Completer Completer
	Variant   HarnessVariant
	Clock     business.Clock
	IDs       ShortIDGenerator
	// Timeout bounds each model call. Zero leaves the caller's deadline.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Generator produces task profiles and workflow analyses.
type Generator struct {
	completer Completer
	variant   HarnessVariant
	clock     business.Clock
	ids       ShortIDGenerator
	timeout   time.Duration
	log       *zap.Logger
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Clock == nil || cfg.IDs == nil {
		return nil, errors.New("analysis requires a clock and id generator")
	}
	switch cfg.Variant {
	case "":
		cfg.Variant = VariantMetric
	case VariantMetric, VariantJudge:
	default:
		return nil, fmt.Errorf("unknown harness variant %q", cfg.Variant)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Generator{
		completer: cfg.Completer,
		variant:   cfg.Variant,
		clock:     cfg.Clock,
		ids:       cfg.IDs,
		timeout:   cfg.Timeout,
		log:       cfg.Logger.Named("analysis"),
	}, nil
}

// Configured reports whether a model is wired.
func (g *Generator) Configured() bool {
	return g.completer != nil
}

// Generate asks the model for prioritized tasks. The business is passed
// through unchanged; every task comes back sanitized and pending.
func (g *Generator) Generate(ctx context.Context, rec business.Record) (Profile, error) {
	if g.completer == nil {
		return Profile{}, ErrNotConfigured
	}
	user := userPrompt(rec, "Generate prioritized improvement tasks with evaluation harnesses.")
	raw, err := tracing.Trace(ctx, "generateBusinessTasks", func(ctx context.Context) (string, error) {
		return g.complete(ctx, systemPrompt(g.variant), user)
	}, attribute.String("business.id", rec.ID), attribute.Int("reviews", len(rec.Reviews)))
	if err != nil {
		return Profile{}, fmt.Errorf("generate tasks for %s: %w", rec.ID, err)
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return Profile{}, fmt.Errorf("generate tasks for %s: %w", rec.ID, err)
	}

	res := sanitizeTasks(obj, g.variant, func() string { return g.ids.NewShortID(6) })
	return Profile{
		Business:       rec,
		Tasks:          res.Tasks,
		Summary:        res.Summary,
		TopIssue:       res.TopIssue,
		SentimentScore: res.SentimentScore,
		AnalyzedAt:     g.clock.Now().UTC(),
	}, nil
}

func (g *Generator) complete(ctx context.Context, system, user string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	out, err := g.completer.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return out, nil
}

// ProfileOrMock runs Generate and substitutes the canned profile on any
// failure. It never returns an error.
func (g *Generator) ProfileOrMock(ctx context.Context, rec business.Record, sessionID, sessionURL string) Profile {
	profile, err := g.Generate(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			g.log.Debug("no model configured, using canned analysis", zap.String("business_id", rec.ID))
		} else {
			g.log.Warn("task generation failed, using canned analysis",
				zap.String("business_id", rec.ID), zap.Error(err))
		}
		metrics.ObserveAnalysis(KindTasks, metrics.OutcomeFallback)
		profile = MockProfile(rec, g.clock.Now(), g.variant)
	} else {
		metrics.ObserveAnalysis(KindTasks, metrics.OutcomeSuccess)
		g.log.Info("generated tasks",
			zap.String("business_id", rec.ID), zap.Int("tasks", len(profile.Tasks)))
	}
	profile.RemoteSessionID = sessionID
	profile.RemoteSessionURL = sessionURL
	return profile
}

// AnalyzeWorkflows asks the model for pain points, strengths, and automated
// workflows.
func (g *Generator) AnalyzeWorkflows(ctx context.Context, rec business.Record) (WorkflowAnalysis, error) {
	if g.completer == nil {
		return WorkflowAnalysis{}, ErrNotConfigured
	}
	user := userPrompt(rec, "Analyze this business and generate workflow recommendations that would improve operations and customer experience.")
	raw, err := tracing.Trace(ctx, "analyzeBusinessReviews", func(ctx context.Context) (string, error) {
		return g.complete(ctx, workflowPrompt, user)
	}, attribute.String("business.id", rec.ID))
	if err != nil {
		return WorkflowAnalysis{}, fmt.Errorf("analyze workflows for %s: %w", rec.ID, err)
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return WorkflowAnalysis{}, fmt.Errorf("analyze workflows for %s: %w", rec.ID, err)
	}

	out := sanitizeWorkflowAnalysis(obj)
	out.BusinessID = rec.ID
	if out.BusinessType == "" {
		out.BusinessType = rec.Category
	}
	out.AnalyzedAt = g.clock.Now().UTC()
	return out, nil
}

// WorkflowsOrMock runs AnalyzeWorkflows and substitutes the canned analysis
// on any failure.
func (g *Generator) WorkflowsOrMock(ctx context.Context, rec business.Record) WorkflowAnalysis {
	out, err := g.AnalyzeWorkflows(ctx, rec)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			g.log.Warn("workflow analysis failed, using canned analysis",
				zap.String("business_id", rec.ID), zap.Error(err))
		}
		metrics.ObserveAnalysis(KindWorkflows, metrics.OutcomeFallback)
		return MockWorkflowAnalysis(rec, g.clock.Now())
	}
	metrics.ObserveAnalysis(KindWorkflows, metrics.OutcomeSuccess)
	return out
}
