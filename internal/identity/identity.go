// Package identity attaches an anonymous participant to every request.
//
// Participants are tracked by a long-lived cookie so a person can come back
// and see earlier assessments without creating an account. The interview a
// request refers to travels separately, in SessionHeaderName or the
// session_id query parameter.
package identity

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/cogcheck/internal/domain"
	"github.com/google/uuid"
)

const (
	AnonCookieName    = "cogcheck_anon_id"
	SessionHeaderName = "X-Cogcheck-Session-ID"
	anonCookieMaxAge  = 180 * 24 * time.Hour
	lastSeenThrottle  = time.Minute
)

type contextKey int

const (
	participantKey contextKey = iota
	sessionIDKey
)

var anonIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)

// Participant is the person taking assessments on this device.
type Participant struct {
	UserID   string
	Username string
	// Returning is set when the participant was already known before this
	// request.
	Returning   bool
	FirstSeenAt time.Time
}

// UserStore is the subset of the repository identity needs.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
}

// ParticipantFromContext returns the participant attached by Middleware.
func ParticipantFromContext(ctx context.Context) (Participant, bool) {
	p, ok := ctx.Value(participantKey).(Participant)
	return p, ok
}

// UserIDFromContext returns the participant's user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	p, _ := ParticipantFromContext(ctx)
	return p.UserID
}

// SessionIDFromContext returns the interview session ID sent with the
// request, or "" when none was sent or it is malformed.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUser returns ctx carrying a participant for userID. Used by tests and
// by transports that authenticate outside the middleware.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, participantKey, Participant{
		UserID:   userID,
		Username: displayName(userID),
	})
}

func newAnonID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(id[:]), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// parseSessionID accepts only the time-ordered UUIDs the session manager
// issues and returns them in canonical form.
func parseSessionID(raw string) string {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id.Version() != 7 {
		return ""
	}
	return id.String()
}

// displayName is the label shown next to assessment history.
func displayName(userID string) string {
	if len(userID) >= 13 {
		return "participant-" + userID[len(userID)-6:]
	}
	return "participant"
}

// resolveParticipant loads or registers userID and refreshes its last-seen
// time at most once per lastSeenThrottle.
func resolveParticipant(ctx context.Context, repo UserStore, userID string, now time.Time) (Participant, error) {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return Participant{}, err
	}
	if user != nil {
		if user.IdleFor(now) >= lastSeenThrottle {
			if err := repo.UpdateLastSeen(ctx, userID, now); err != nil {
				slog.Warn("Failed to update last seen", "user_id", userID, "error", err)
			}
		}
		return Participant{
			UserID:      user.UserID,
			Username:    user.Username,
			Returning:   true,
			FirstSeenAt: user.CreatedAt,
		}, nil
	}

	user = &domain.User{
		UserID:     userID,
		Username:   displayName(userID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.UpsertUser(ctx, user); err != nil {
		return Participant{}, err
	}
	slog.Info("New participant registered", "user_id", userID)
	return Participant{UserID: userID, Username: user.Username, FirstSeenAt: now}, nil
}

// anonIDFromRequest returns the cookie's ID when valid, or a new one. The
// cookie is always rewritten to slide its expiry.
func anonIDFromRequest(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	id := ""
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		id = c.Value
	} else {
		var err error
		if id, err = newAnonID(); err != nil {
			return "", err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id, nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return parseSessionID(sid)
}

// Middleware attaches the participant and the optional interview session ID
// to the request context.
func Middleware(repo UserStore, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := anonIDFromRequest(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			p, err := resolveParticipant(r.Context(), repo, userID, time.Now())
			if err != nil {
				slog.Error("Failed to resolve participant", "user_id", userID, "error", err)
				http.Error(w, `{"error":"failed to initialize participant"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), participantKey, p)
			ctx = context.WithValue(ctx, sessionIDKey, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns the remote IP without its port.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
