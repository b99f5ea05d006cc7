// Package transcript records conversation turns as per-session NDJSON files.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

// Event directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Event types.
const (
	EventSessionStarted = "session_started"
	EventUserMessage    = "user_message"
	EventAgentMessage   = "agent_message"
	EventCompleted      = "assessment_completed"
)

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one line of a session transcript.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Channel   string    `json:"channel"`
	Direction string    `json:"direction"`
	EventType string    `json:"event_type"`
	Phase     string    `json:"phase,omitempty"`
	Content   string    `json:"content"`
	Metadata  any       `json:"metadata,omitempty"`

	closeOnly bool
}

// Logger writes events asynchronously. A disabled or nil Logger drops
// everything.
type Logger struct {
	cfg    Config
	logger *slog.Logger
	events chan Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	filesMu sync.Mutex
	files   map[string]*os.File
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// NewLogger starts the background writer when cfg.Enabled is set.
func NewLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	l := &Logger{cfg: cfg, logger: logger}
	if !cfg.Enabled {
		return l, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	l.events = make(chan Event, cfg.QueueSize)
	l.files = make(map[string]*os.File)
	l.wg.Add(1)
	go l.run()

	logger.Info("Transcript logging enabled", "dir", cfg.Dir, "queue_size", cfg.QueueSize)
	return l, nil
}

// Enabled reports whether events are being recorded.
func (l *Logger) Enabled() bool {
	return l != nil && l.cfg.Enabled
}

// Log queues ev. When the queue is full the oldest pending event is dropped.
func (l *Logger) Log(ev Event) {
	if !l.Enabled() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	l.enqueue(ev)
}

// CloseSession releases the file held for a session that will not log
// again. Events already queued for it are written first.
func (l *Logger) CloseSession(userID, sessionID string) {
	if !l.Enabled() {
		return
	}
	l.enqueue(Event{UserID: userID, SessionID: sessionID, closeOnly: true})
}

// OpenFiles returns the number of transcript files currently held open.
func (l *Logger) OpenFiles() int {
	if !l.Enabled() {
		return 0
	}
	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	return len(l.files)
}

func (l *Logger) enqueue(ev Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	select {
	case l.events <- ev:
		return
	default:
	}

	l.logger.Warn("Transcript queue full, dropping oldest event",
		"user_id", ev.UserID,
		"session_id", ev.SessionID,
		"queue_len", len(l.events),
	)
	select {
	case <-l.events:
	default:
	}
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("Transcript event dropped", "session_id", ev.SessionID)
	}
}

func (l *Logger) run() {
	defer l.wg.Done()
	for ev := range l.events {
		if err := l.write(ev); err != nil {
			l.logger.Error("Failed to write transcript event",
				"error", err,
				"user_id", ev.UserID,
				"session_id", ev.SessionID,
			)
		}
	}
	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	for key, f := range l.files {
		if err := f.Close(); err != nil {
			l.logger.Warn("Failed to close transcript file", "file", key, "error", err)
		}
		delete(l.files, key)
	}
}

func (l *Logger) write(ev Event) error {
	path := l.pathFor(ev.UserID, ev.SessionID)

	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	f, ok := l.files[path]
	if ev.closeOnly {
		if !ok {
			return nil
		}
		delete(l.files, path)
		return f.Close()
	}
	if !ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create user directory: %w", err)
		}
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		l.files[path] = f
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if ev.EventType == EventCompleted {
		delete(l.files, path)
		return f.Close()
	}
	return nil
}

func (l *Logger) pathFor(userID, sessionID string) string {
	return filepath.Join(l.cfg.Dir, safeName(userID), safeName(sessionID)+".ndjson")
}

func safeName(s string) string {
	if s == "" {
		return "unknown"
	}
	return unsafePathChars.ReplaceAllString(s, "_")
}

// Close flushes pending events and closes open files.
func (l *Logger) Close() error {
	if !l.Enabled() {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		l.logger.Warn("Transcript writer shutdown timeout")
		return fmt.Errorf("transcript writer did not stop in time")
	}
}
