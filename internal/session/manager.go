// Package session keeps the in-memory registry of running interviews.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/cogcheck/internal/conversation"
	"github.com/ashureev/cogcheck/internal/domain"
	"github.com/ashureev/cogcheck/internal/scoring"
	"github.com/ashureev/cogcheck/internal/transcript"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown or evicted session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrForbidden is returned when a session belongs to another user.
	ErrForbidden = errors.New("session belongs to another user")
)

// ResultSink persists completed assessments.
type ResultSink interface {
	SaveAssessment(ctx context.Context, a *domain.Assessment) error
}

// Status is a point-in-time view of a session.
type Status struct {
	SessionID    string             `json:"session_id"`
	Phase        conversation.Phase `json:"phase"`
	Scores       scoring.Snapshot   `json:"scores"`
	Done         bool               `json:"done"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActivity time.Time          `json:"last_activity"`
}

// Entry is one registered session. Its state is only touched under mu.
type Entry struct {
	id        string
	userID    string
	createdAt time.Time

	mu           sync.Mutex
	state        *conversation.State
	lastActivity time.Time
	recorded     bool
}

// ID returns the session ID.
func (e *Entry) ID() string { return e.id }

// UserID returns the owning user.
func (e *Entry) UserID() string { return e.userID }

// Status returns the session's current status.
func (e *Entry) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Entry) statusLocked() Status {
	return Status{
		SessionID:    e.id,
		Phase:        e.state.Phase,
		Scores:       e.state.Scoring.Snapshot(),
		Done:         e.state.Phase == conversation.PhaseDone,
		CreatedAt:    e.createdAt,
		LastActivity: e.lastActivity,
	}
}

// Manager owns all live sessions.
type Manager struct {
	machine    *conversation.Machine
	sink       ResultSink
	transcript *transcript.Logger
	logger     *slog.Logger
	now        func() time.Time
	onEvict    EvictCallback

	mu       sync.RWMutex
	sessions map[string]*Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithTranscript records every turn to l.
func WithTranscript(l *transcript.Logger) Option {
	return func(m *Manager) { m.transcript = l }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// EvictCallback is called after Sweep removes a session.
type EvictCallback func(userID, sessionID string)

// WithEvictCallback registers fn to run for every evicted session.
func WithEvictCallback(fn EvictCallback) Option {
	return func(m *Manager) { m.onEvict = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager. sink may be nil, in which case
// completed assessments are not persisted.
func NewManager(machine *conversation.Machine, sink ResultSink, opts ...Option) *Manager {
	m := &Manager{
		machine:  machine,
		sink:     sink,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type channelKey struct{}

// WithChannel tags ctx with the transport name recorded in transcripts.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok {
		return ch
	}
	return "http"
}

// Create registers a fresh session for userID and returns it with the
// opening prompt.
func (m *Manager) Create(ctx context.Context, userID string) (*Entry, string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("generate session id: %w", err)
	}
	now := m.now()
	e := &Entry{
		id:           id.String(),
		userID:       userID,
		createdAt:    now,
		state:        m.machine.NewState(),
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[e.id] = e
	count := len(m.sessions)
	m.mu.Unlock()

	opening := m.machine.OpeningPrompt()
	m.logger.Info("Session created", "user_id", userID, "session_id", e.id, "active", count)
	m.transcript.Log(transcript.Event{
		UserID:    userID,
		SessionID: e.id,
		Channel:   channelFrom(ctx),
		Direction: transcript.DirectionOutbound,
		EventType: transcript.EventSessionStarted,
		Phase:     string(e.state.Phase),
		Content:   opening,
	})
	return e, opening, nil
}

// Get returns the session if it exists and belongs to userID.
func (m *Manager) Get(userID, sessionID string) (*Entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if e.userID != userID {
		return nil, ErrForbidden
	}
	return e, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Turn advances a session by one user answer. Turns on the same session are
// serialized; different sessions proceed in parallel.
func (m *Manager) Turn(ctx context.Context, userID, sessionID, text string) (conversation.Turn, error) {
	e, err := m.Get(userID, sessionID)
	if err != nil {
		return conversation.Turn{}, err
	}
	channel := channelFrom(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	turn, err := m.machine.HandleTurn(e.state, text)
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	e.state = turn.State
	e.lastActivity = m.now()

	m.transcript.Log(transcript.Event{
		UserID: userID, SessionID: sessionID, Channel: channel,
		Direction: transcript.DirectionInbound, EventType: transcript.EventUserMessage,
		Content: text,
	})
	if turn.AgentText != "" {
		m.transcript.Log(transcript.Event{
			UserID: userID, SessionID: sessionID, Channel: channel,
			Direction: transcript.DirectionOutbound, EventType: transcript.EventAgentMessage,
			Phase: string(turn.Phase), Content: turn.AgentText,
		})
	}

	if turn.Done && !e.recorded {
		m.recordLocked(ctx, e, channel)
	}
	return turn, nil
}

// recordLocked persists the finished assessment once. The save outlives the
// caller's cancellation; a failed save is retried on the next turn and again
// before the session is evicted.
func (m *Manager) recordLocked(ctx context.Context, e *Entry, channel string) {
	a := &domain.Assessment{
		AssessmentID:      e.id,
		UserID:            e.userID,
		StartedAt:         e.createdAt,
		CompletedAt:       e.lastActivity,
		RegistrationWords: e.state.RegistrationWords,
		RepeatedWords:     e.state.UserRepeatedWords,
		RecalledWords:     e.state.DelayedRecallAttempt,
		Scores:            e.state.Scoring.Snapshot(),
	}
	if m.sink != nil {
		if err := m.sink.SaveAssessment(context.WithoutCancel(ctx), a); err != nil {
			m.logger.Error("Failed to save assessment", "error", err, "user_id", e.userID, "session_id", e.id)
			return
		}
	}
	e.recorded = true

	overall := a.Overall()
	m.logger.Info("Assessment completed",
		"user_id", e.userID,
		"session_id", e.id,
		"percent", overall.Percent,
		"category", overall.Category,
		"duration", a.Duration(),
	)
	m.transcript.Log(transcript.Event{
		UserID: e.userID, SessionID: e.id, Channel: channel,
		Direction: transcript.DirectionOutbound, EventType: transcript.EventCompleted,
		Phase: string(conversation.PhaseDone), Metadata: a.Scores,
	})
}

// Sweep evicts sessions idle for longer than ttl and returns how many were
// removed. Sessions with a turn in flight are skipped. A finished session
// whose assessment was never saved gets one last save attempt.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	var evicted []*Entry
	m.mu.Lock()
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.lastActivity.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			evicted = append(evicted, e)
		}
	}
	m.mu.Unlock()

	for _, e := range evicted {
		e.mu.Lock()
		if e.state.Phase == conversation.PhaseDone && !e.recorded {
			m.recordLocked(ctx, e, "sweep")
			if !e.recorded {
				m.logger.Warn("Assessment lost on eviction", "user_id", e.userID, "session_id", e.id)
			}
		}
		e.mu.Unlock()

		m.logger.Debug("Session evicted", "user_id", e.userID, "session_id", e.id)
		m.transcript.CloseSession(e.userID, e.id)
		if m.onEvict != nil {
			m.onEvict(e.userID, e.id)
		}
	}
	return len(evicted)
}
