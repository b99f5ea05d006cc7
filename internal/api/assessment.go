package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/cogcheck/internal/catalog"
	"github.com/ashureev/cogcheck/internal/domain"
	"github.com/ashureev/cogcheck/internal/identity"
	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GetMe returns the current user's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	count, err := h.repo.CountAssessments(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to count assessments", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	p, _ := identity.ParticipantFromContext(r.Context())
	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":          user.UserID,
		"username":         user.Username,
		"created_at":       user.CreatedAt,
		"returning":        p.Returning,
		"assessment_count": count,
	})
}

// catalogItem is the public view of a question; prompts are included but
// not the registration words.
type catalogItem struct {
	ID        string       `json:"id"`
	Domain    string       `json:"domain"`
	Prompt    string       `json:"prompt"`
	MaxPoints int          `json:"max_points"`
	Kind      catalog.Kind `json:"qtype"`
}

// GetCatalog lists the intervening questions.
func (h *Handler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	questions := h.catalog.Questions()
	items := make([]catalogItem, 0, len(questions))
	total := 0
	for _, q := range questions {
		items = append(items, catalogItem{
			ID:        q.ID,
			Domain:    q.Domain,
			Prompt:    q.Prompt,
			MaxPoints: q.MaxPoints,
			Kind:      q.Kind(),
		})
		total += q.MaxPoints
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"questions":        items,
		"count":            len(items),
		"total_max_points": total,
	})
}

// ListAssessments returns the current user's completed assessments.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.repo.ListAssessments(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to list assessments", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list assessments")
		return
	}
	if list == nil {
		list = []*domain.Assessment{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"assessments": list})
}

// GetAssessment returns one of the current user's assessments.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	a, err := h.repo.GetAssessment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Failed to load assessment", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	// Another user's assessment is reported as missing.
	if a == nil || a.UserID != userID {
		Error(w, http.StatusNotFound, "assessment not found")
		return
	}
	JSON(w, http.StatusOK, a)
}
