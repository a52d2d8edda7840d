package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/analysis"
	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/config"
	"github.com/JakeFAU/business-discovery/internal/discovery"
	"github.com/JakeFAU/business-discovery/internal/feedback"
	"github.com/JakeFAU/business-discovery/internal/messagelog"
	"github.com/JakeFAU/business-discovery/internal/metrics"
	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/store"
)

// Discoverer resolves a listing URL into a business record. It never fails.
type Discoverer interface {
	Discover(ctx context.Context, sourceURL string) discovery.Result
}

// Analyzer turns a record into recommendations, substituting canned output
// when the model is unavailable.
type Analyzer interface {
	ProfileOrMock(ctx context.Context, rec business.Record, sessionID, sessionURL string) analysis.Profile
	WorkflowsOrMock(ctx context.Context, rec business.Record) analysis.WorkflowAnalysis
}

// FeedbackRecorder applies user feedback to stored recommendations.
type FeedbackRecorder interface {
	ApplyToTask(ctx context.Context, businessID, taskID string, action feedback.Action, text string) (analysis.Task, error)
	ApplyToWorkflow(ctx context.Context, businessID, workflowID string, action feedback.Action, text string) (analysis.Workflow, error)
}

// Options carries the server's collaborators. Repository, Feedback and
// Messages may be nil; the routes that need them answer 503.
type Options struct {
	Discoverer Discoverer
	Analyzer   Analyzer
	Repository *store.Repository
	Feedback   FeedbackRecorder
	Messages   *messagelog.Log
	// Events receives every progress event in addition to the SSE stream.
	Events progress.Emitter
	RunIDs business.IDGenerator
	Clock  business.Clock
	Config config.Config
	Logger *zap.Logger
}

// Server wires HTTP handlers to the discovery pipeline and stores.
type Server struct {
	router     chi.Router
	discoverer Discoverer
	analyzer   Analyzer
	repo       *store.Repository
	feedback   FeedbackRecorder
	messages   *messagelog.Log
	events     progress.Emitter
	runIDs     business.IDGenerator
	clock      business.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := opts.Events
	if events == nil {
		events = progress.Nop
	}
	s := &Server{
		discoverer: opts.Discoverer,
		analyzer:   opts.Analyzer,
		repo:       opts.Repository,
		feedback:   opts.Feedback,
		messages:   opts.Messages,
		events:     events,
		runIDs:     opts.RunIDs,
		clock:      opts.Clock,
		cfg:        opts.Config,
		logger:     logger.Named("api"),
	}
	timeout := opts.Config.RequestTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	if opts.Config.Auth.Enabled {
		r.Use(apiKeyMiddleware(opts.Config.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Pipeline routes bound their own lifetime instead of sitting behind
		// http.TimeoutHandler. An expired budget degrades to fallback output,
		// never to a 503.
		pipeline := opts.Config.PipelineTimeout()
		if pipeline < timeout {
			pipeline = timeout
		}
		r.Post("/discover/stream", s.discoverStream(pipeline))
		r.Post("/discover", s.discover(pipeline))
		r.Post("/agent", s.agent(pipeline))

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))
			r.Route("/businesses/{business_id}", func(r chi.Router) {
				r.Get("/", s.getBusiness)
				r.Get("/profile", s.getProfile)
				r.Get("/workflows", s.getWorkflows)
				r.Post("/workflows/analyze", s.analyzeWorkflows)
				r.Post("/tasks/{task_id}/feedback", s.taskFeedback)
				r.Post("/workflows/{workflow_id}/feedback", s.workflowFeedback)
			})
			r.Route("/users/{user_id}/conversations/{conversation_id}/messages", func(r chi.Router) {
				r.Get("/", s.readMessages)
				r.Post("/", s.appendMessage)
				r.Delete("/", s.deleteMessages)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.discoverer == nil || s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// newRunID falls back to a random UUID when no generator is configured or it
// fails; run ids only correlate log lines and events.
func (s *Server) newRunID() string {
	if s.runIDs != nil {
		if id, err := s.runIDs.NewID(); err == nil {
			return id
		}
	}
	return uuid.NewString()
}

func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now()
}

// statusFor maps collaborator errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, feedback.ErrInvalidAction), errors.Is(err, messagelog.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
