// Package ws serves conversations over WebSocket.
package ws

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the live WebSocket connection of each conversation session.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the active connection for a user and session.
func (r *Registry) Get(userID, sessionID string) *websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sessions, ok := r.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds conn for a user/session, closing any connection it replaces.
func (r *Registry) Register(userID, sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[userID]; !exists {
		r.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := r.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusPolicyViolation, "session opened elsewhere")
	}

	r.active[userID][sessionID] = conn
	slog.Info("Conversation socket registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the registered one.
func (r *Registry) Unregister(userID, sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessions, ok := r.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(r.active, userID)
			}
			slog.Info("Conversation socket unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// CloseSession closes the socket of an evicted session, if any.
func (r *Registry) CloseSession(userID, sessionID string) {
	r.mu.Lock()
	conn := r.active[userID][sessionID]
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusGoingAway, "session expired")
		slog.Info("Conversation socket closed", "user_id", userID, "session_id", sessionID)
	}
}
