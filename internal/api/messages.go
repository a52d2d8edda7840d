package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/business-discovery/internal/messagelog"
)

type appendMessageRequest struct {
	Direction messagelog.Direction `json:"direction"`
	Data      json.RawMessage      `json:"data"`
}

func (s *Server) requireMessages(w http.ResponseWriter) bool {
	if s.messages == nil {
		writeError(w, http.StatusServiceUnavailable, "message log not configured")
		return false
	}
	return true
}

func (s *Server) readMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireMessages(w) {
		return
	}
	q := r.URL.Query()
	opts := messagelog.ReadOptions{Before: q.Get("before")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	page, err := s.messages.Read(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "conversation_id"), opts)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) appendMessage(w http.ResponseWriter, r *http.Request) {
	if !s.requireMessages(w) {
		return
	}
	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	msg, err := s.messages.Append(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "conversation_id"),
		messagelog.Message{Direction: req.Direction, Data: req.Data})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) deleteMessages(w http.ResponseWriter, r *http.Request) {
	if !s.requireMessages(w) {
		return
	}
	if err := s.messages.Delete(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "conversation_id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
