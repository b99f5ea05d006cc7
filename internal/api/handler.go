// Package api provides HTTP handlers for the cogcheck API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/cogcheck/internal/catalog"
	"github.com/ashureev/cogcheck/internal/session"
	"github.com/ashureev/cogcheck/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 64 << 10

// Handler serves the conversation and assessment endpoints.
type Handler struct {
	repo     store.Repository
	sessions *session.Manager
	catalog  *catalog.Catalog
	limiter  *RateLimiter
}

// NewHandler creates a new Handler. limiter may be nil to disable throttling.
func NewHandler(repo store.Repository, sessions *session.Manager, cat *catalog.Catalog, limiter *RateLimiter) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		catalog:  cat,
		limiter:  limiter,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/catalog", h.GetCatalog)
		r.Post("/session", h.CreateSession)
		r.Get("/session/{id}", h.GetSession)
		r.Post("/conversation/next", h.NextTurn)
		r.Get("/assessments", h.ListAssessments)
		r.Get("/assessments/{id}", h.GetAssessment)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// sessionError maps session lookup failures to HTTP responses.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrForbidden):
		Error(w, http.StatusForbidden, "forbidden")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a size-limited JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
