package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/generate"
	"github.com/vedanta-labs/vaidya/internal/models"
)

type sessionResponse struct {
	ID            string `json:"id"`
	Phase         string `json:"phase"`
	UserTurnCount int    `json:"user_turn_count"`
	Escalated     bool   `json:"escalated,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Response    string                  `json:"response"`
	Phase       string                  `json:"phase"`
	Closed      bool                    `json:"closed"`
	SafetyAlert *safetyAlertBody        `json:"safety_alert,omitempty"`
	Report      *models.DiagnosisReport `json:"report,omitempty"`
}

type safetyAlertBody struct {
	Condition  string  `json:"condition"`
	Similarity float64 `json:"similarity"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	memory := s.engine.NewSession()
	s.sessions.add(memory)
	s.logger.Info("session created", zap.String("session", memory.ID))
	s.respondJSON(w, http.StatusCreated, sessionResponse{
		ID:            memory.ID,
		Phase:         string(memory.Phase),
		UserTurnCount: memory.UserTurnCount,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found", false)
		return
	}
	sess.mu.Lock()
	resp := sessionResponse{
		ID:            sess.memory.ID,
		Phase:         string(sess.memory.Phase),
		UserTurnCount: sess.memory.UserTurnCount,
		Escalated:     sess.memory.Escalated,
	}
	sess.mu.Unlock()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found", false)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", false)
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message is required", false)
		return
	}

	sess.mu.Lock()
	result, err := s.engine.ProcessTurn(r.Context(), sess.memory, req.Message)
	sess.mu.Unlock()

	if err != nil {
		if errors.Is(err, generate.ErrTimeout) || errors.Is(err, generate.ErrUnavailable) {
			s.logger.Warn("turn failed with retryable error", zap.String("session", id), zap.Error(err))
			s.respondError(w, http.StatusServiceUnavailable, "the model is unavailable, please retry", true)
			return
		}
		s.logger.Error("turn failed", zap.String("session", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error(), false)
		return
	}

	resp := messageResponse{
		Response: result.Response,
		Phase:    string(result.Phase),
		Closed:   result.Closed,
		Report:   result.Report,
	}
	if result.SafetyAlert != nil && result.SafetyAlert.Risk {
		resp.SafetyAlert = &safetyAlertBody{
			Condition:  result.SafetyAlert.MatchedCondition,
			Similarity: result.SafetyAlert.Similarity,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.remove(id) {
		s.respondError(w, http.StatusNotFound, "session not found", false)
		return
	}
	s.logger.Info("session ended", zap.String("session", id))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.count(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string, retryable bool) {
	s.respondJSON(w, status, errorResponse{Error: msg, Retryable: retryable})
}
