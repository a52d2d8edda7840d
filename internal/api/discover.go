package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/analysis"
	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/discovery"
	"github.com/JakeFAU/business-discovery/internal/progress"
	"github.com/JakeFAU/business-discovery/internal/publisher"
)

var errMissingURL = errors.New("maps_url is required")

type discoverRequest struct {
	MapsURL      string `json:"maps_url"`
	MapsURLCamel string `json:"mapsUrl"`
	URL          string `json:"url"`
}

func (r discoverRequest) sourceURL() string {
	for _, u := range []string{r.MapsURL, r.MapsURLCamel, r.URL} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

type discoverResponse struct {
	Success bool `json:"success"`
	discovery.Result
}

type agentResponse struct {
	Success bool             `json:"success"`
	Profile analysis.Profile `json:"profile"`
}

// businessSummary is the payload of the stream's business event.
type businessSummary struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Rating         float64 `json:"rating"`
	ReviewCount    int     `json:"review_count"`
	Address        string  `json:"address"`
	ReviewsScraped int     `json:"reviews_scraped"`
}

// streamComplete is the payload of the stream's complete event.
type streamComplete struct {
	Business         business.Record   `json:"business"`
	Analysis         *analysis.Profile `json:"analysis"`
	RemoteSessionID  string            `json:"remote_session_id,omitempty"`
	RemoteSessionURL string            `json:"remote_session_url,omitempty"`
}

func decodeSourceURL(r *http.Request) (string, error) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", errors.New("invalid JSON")
	}
	u := req.sourceURL()
	if u == "" {
		return "", errMissingURL
	}
	return u, nil
}

// discover resolves a listing within timeout. Providers that run out of time
// fall through to the mock, so the answer is still a 200.
func (s *Server) discover(timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceURL, err := decodeSourceURL(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.discoverer == nil {
			writeError(w, http.StatusServiceUnavailable, "discovery not configured")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		ctx, _ = s.runContext(ctx, s.events)
		res := s.discoverer.Discover(ctx, sourceURL)
		s.saveBusiness(r.Context(), res.Business)
		writeJSON(w, http.StatusOK, discoverResponse{Success: true, Result: res})
	}
}

func (s *Server) agent(timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceURL, err := decodeSourceURL(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.discoverer == nil || s.analyzer == nil {
			writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		ctx, runID := s.runContext(ctx, s.events)
		res := s.discoverer.Discover(ctx, sourceURL)
		s.saveBusiness(r.Context(), res.Business)

		profile := s.analyzer.ProfileOrMock(ctx, res.Business, res.RemoteSessionID, res.RemoteSessionURL)
		s.saveProfile(r.Context(), profile)
		s.events.Emit(s.completed(runID, res, profile))

		s.logger.Info("agent run finished",
			zap.String("run_id", runID),
			zap.String("business_id", res.Business.ID),
			zap.Int("tasks", len(profile.Tasks)),
			zap.Bool("mock_analysis", profile.MockAnalysis),
		)
		writeJSON(w, http.StatusOK, agentResponse{Success: true, Profile: profile})
	}
}

// discoverStream runs discovery and analysis while streaming progress as
// server-sent events. Once headers are sent every outcome is reported as an
// event, never as a status code.
func (s *Server) discoverStream(timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceURL, err := decodeSourceURL(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.discoverer == nil || s.analyzer == nil {
			writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		sse := progress.NewSSEWriter(w)
		emit := progress.Multi(sse, s.events)
		ctx, runID := s.runContext(ctx, emit)

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("stream panic recovered", zap.String("run_id", runID), zap.Any("panic", rec), zap.Stack("stack"))
				emit.Emit(progress.Failure(runID, s.now(), "Pipeline failed"))
			}
		}()

		res := s.discoverer.Discover(ctx, sourceURL)
		rec := res.Business
		emit.Emit(progress.Event{RunID: runID, TS: s.now(), Name: progress.NameBusiness, Data: businessSummary{
			Name:           rec.Name,
			Type:           rec.Category,
			Rating:         rec.Rating,
			ReviewCount:    rec.ReviewCount,
			Address:        rec.Address,
			ReviewsScraped: len(rec.Reviews),
		}})
		s.saveBusiness(ctx, rec)

		emit.Emit(progress.Step(runID, s.now(), progress.StepAnalyzing, "AI analyzing reviews..."))
		profile := s.analyzer.ProfileOrMock(ctx, rec, res.RemoteSessionID, res.RemoteSessionURL)
		if err := ctx.Err(); err != nil {
			emit.Emit(progress.Failure(runID, s.now(), "Pipeline timed out"))
			return
		}
		s.saveProfile(ctx, profile)

		emit.Emit(progress.Step(runID, s.now(), progress.StepComplete, "Discovery complete!"))
		sse.Emit(progress.Event{RunID: runID, TS: s.now(), Name: progress.NameComplete, Data: streamComplete{
			Business:         rec,
			Analysis:         &profile,
			RemoteSessionID:  res.RemoteSessionID,
			RemoteSessionURL: res.RemoteSessionURL,
		}})
		s.events.Emit(s.completed(runID, res, profile))

		if err := sse.Err(); err != nil {
			s.logger.Warn("stream write failed", zap.String("run_id", runID), zap.Error(err))
		}
	}
}

// runContext tags ctx with a fresh run id and the emitter that should see its
// progress.
func (s *Server) runContext(ctx context.Context, emit progress.Emitter) (context.Context, string) {
	runID := s.newRunID()
	ctx = progress.WithRunID(ctx, runID)
	return progress.WithEmitter(ctx, emit), runID
}

func (s *Server) completed(runID string, res discovery.Result, profile analysis.Profile) progress.Event {
	return progress.Event{RunID: runID, TS: s.now(), Name: progress.NameComplete, Data: publisher.ProfileCompleted{
		RunID:        runID,
		BusinessID:   profile.Business.ID,
		Name:         profile.Business.Name,
		Provider:     res.Provider,
		Tasks:        len(profile.Tasks),
		MockAnalysis: profile.MockAnalysis,
		SessionID:    res.RemoteSessionID,
	}}
}

// saveBusiness and saveProfile are best effort: a storage outage must not
// turn a finished discovery into an error.
func (s *Server) saveBusiness(ctx context.Context, rec business.Record) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveBusiness(ctx, rec); err != nil {
		s.logger.Warn("store business failed", zap.String("business_id", rec.ID), zap.Error(err))
	}
}

func (s *Server) saveProfile(ctx context.Context, p analysis.Profile) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		s.logger.Warn("store profile failed", zap.String("business_id", p.Business.ID), zap.Error(err))
	}
}
