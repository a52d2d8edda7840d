package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/business-discovery/internal/feedback"
)

type feedbackRequest struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

func (s *Server) requireRepo(w http.ResponseWriter) bool {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return false
	}
	return true
}

func (s *Server) getBusiness(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	rec, err := s.repo.Business(r.Context(), chi.URLParam(r, "business_id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	p, err := s.repo.Profile(r.Context(), chi.URLParam(r, "business_id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getWorkflows(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	wa, err := s.repo.Workflows(r.Context(), chi.URLParam(r, "business_id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "workflows": wa})
}

func (s *Server) analyzeWorkflows(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}
	ctx := r.Context()
	rec, err := s.repo.Business(ctx, chi.URLParam(r, "business_id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	wa := s.analyzer.WorkflowsOrMock(ctx, rec)
	if err := s.repo.SaveWorkflows(ctx, wa); err != nil {
		s.logger.Warn("store workflows failed", zap.String("business_id", rec.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "analysis": wa})
}

func decodeFeedback(r *http.Request) (feedbackRequest, bool) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	return req, true
}

func (s *Server) taskFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, "feedback not configured")
		return
	}
	req, ok := decodeFeedback(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	task, err := s.feedback.ApplyToTask(r.Context(),
		chi.URLParam(r, "business_id"), chi.URLParam(r, "task_id"),
		feedback.Action(req.Action), req.Text)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) workflowFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, "feedback not configured")
		return
	}
	req, ok := decodeFeedback(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	wf, err := s.feedback.ApplyToWorkflow(r.Context(),
		chi.URLParam(r, "business_id"), chi.URLParam(r, "workflow_id"),
		feedback.Action(req.Action), req.Text)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}
