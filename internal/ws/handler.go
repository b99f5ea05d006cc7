package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ashureev/cogcheck/internal/conversation"
	"github.com/ashureev/cogcheck/internal/identity"
	"github.com/ashureev/cogcheck/internal/session"
	"github.com/coder/websocket"
)

const (
	readLimit    = 64 << 10
	writeTimeout = 10 * time.Second
)

// Limiter throttles turns per user.
type Limiter interface {
	Allow(key string) bool
}

// Handler upgrades /ws/conversation requests and runs the turn loop.
type Handler struct {
	sessions       *session.Manager
	registry       *Registry
	limiter        Limiter
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a new WebSocket handler. limiter may be nil.
func NewHandler(sessions *session.Manager, registry *Registry, limiter Limiter, allowedOrigins []string, isDev bool) *Handler {
	return &Handler{
		sessions:       sessions,
		registry:       registry,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// clientFrame is a message from the browser.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// turnFrame carries one conversation turn to the browser.
type turnFrame struct {
	Type string `json:"type"`
	conversation.Turn
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if userID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, `{"error":"origin not allowed"}`, http.StatusForbidden)
		return
	}
	if _, err := h.sessions.Get(userID, sessionID); err != nil {
		status := http.StatusNotFound
		if errors.Is(err, session.ErrForbidden) {
			status = http.StatusForbidden
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	conn.SetReadLimit(readLimit)
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "conversation ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.registry.Register(userID, sessionID, conn)
	defer h.registry.Unregister(userID, sessionID, conn)

	ctx := session.WithChannel(r.Context(), "ws")
	h.readLoop(ctx, conn, userID, sessionID)
	slog.Info("Conversation socket ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, userID, sessionID string) {
	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg clientFrame
		if err := json.Unmarshal(message, &msg); err != nil {
			if err := writeJSON(ctx, conn, errorFrame{Type: "error", Error: "invalid_message"}); err != nil {
				return
			}
			continue
		}

		var reply any
		switch msg.Type {
		case "answer":
			reply = h.answer(ctx, userID, sessionID, msg.Content)
		case "ping":
			reply = map[string]string{"type": "pong"}
		default:
			reply = errorFrame{Type: "error", Error: "unknown_message_type"}
		}

		if err := writeJSON(ctx, conn, reply); err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) answer(ctx context.Context, userID, sessionID, content string) any {
	if h.limiter != nil && !h.limiter.Allow(userID) {
		return errorFrame{Type: "error", Error: "rate_limit_exceeded"}
	}
	turn, err := h.sessions.Turn(ctx, userID, sessionID, content)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return errorFrame{Type: "error", Error: "session_not_found"}
	case err != nil:
		slog.Warn("Conversation turn failed", "error", err, "user_id", userID, "session_id", sessionID)
		return errorFrame{Type: "error", Error: "turn_failed"}
	}
	return turnFrame{Type: "turn", Turn: turn}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
