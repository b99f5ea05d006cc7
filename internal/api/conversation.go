package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/cogcheck/internal/identity"
	"github.com/go-chi/chi/v5"
)

// NextTurnRequest is the body of POST /api/conversation/next.
type NextTurnRequest struct {
	SessionID string `json:"session_id"`
	UserText  string `json:"user_text"`
}

// CreateSession starts a new interview for the current user.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, opening, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to create session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	status := entry.Status()

	JSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": entry.ID(),
		"agent_text": opening,
		"phase":      status.Phase,
	})
}

// NextTurn feeds one user answer to the session and returns the agent's reply.
func (h *Handler) NextTurn(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req NextTurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	turn, err := h.sessions.Turn(r.Context(), userID, sessionID, req.UserText)
	if err != nil {
		slog.Warn("Conversation turn failed", "user_id", userID, "session_id", sessionID, "error", err)
		sessionError(w, err)
		return
	}

	JSON(w, http.StatusOK, turn)
}

// GetSession returns a session's phase and running scores.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	entry, err := h.sessions.Get(userID, chi.URLParam(r, "id"))
	if err != nil {
		sessionError(w, err)
		return
	}
	JSON(w, http.StatusOK, entry.Status())
}
