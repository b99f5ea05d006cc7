package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/cogcheck/internal/domain"
	"github.com/ashureev/cogcheck/internal/scoring"
	"github.com/ashureev/cogcheck/internal/shared"
	_ "modernc.org/sqlite"
)

// ErrDuplicateAssessment is returned when an assessment ID is saved twice.
var ErrDuplicateAssessment = errors.New("assessment already saved")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assessments (
		assessment_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL,
		overall_points INTEGER NOT NULL,
		overall_max_points INTEGER NOT NULL,
		overall_percent REAL NOT NULL,
		overall_category TEXT NOT NULL,
		scores_json TEXT NOT NULL,
		registration_words_json TEXT NOT NULL,
		repeated_words_json TEXT NOT NULL,
		recalled_words_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id, completed_at);
	CREATE INDEX IF NOT EXISTS idx_assessments_completed ON assessments(completed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return s.withRetry(ctx, "upsert user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username,
			user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`

	var rows int64
	err := s.withRetry(ctx, "update last_seen", func() error {
		result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// SaveAssessment stores a completed assessment.
func (s *SQLiteStore) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	scoresJSON, err := json.Marshal(a.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	regJSON, err := marshalWords(a.RegistrationWords)
	if err != nil {
		return err
	}
	repeatedJSON, err := marshalWords(a.RepeatedWords)
	if err != nil {
		return err
	}
	recalledJSON, err := marshalWords(a.RecalledWords)
	if err != nil {
		return err
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assessments WHERE assessment_id = ?`, a.AssessmentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check assessment: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("save assessment %s: %w", a.AssessmentID, ErrDuplicateAssessment)
	}

	overall := a.Overall()
	query := `
		INSERT INTO assessments (
			assessment_id, user_id, started_at, completed_at,
			overall_points, overall_max_points, overall_percent, overall_category,
			scores_json, registration_words_json, repeated_words_json, recalled_words_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.withRetry(ctx, "save assessment", func() error {
		_, err := s.db.ExecContext(ctx, query,
			a.AssessmentID, a.UserID, a.StartedAt.Unix(), a.CompletedAt.Unix(),
			overall.Points, overall.MaxPoints, overall.Percent, string(overall.Category),
			string(scoresJSON), regJSON, repeatedJSON, recalledJSON,
		)
		return err
	})
}

const assessmentColumns = `
	assessment_id, user_id, started_at, completed_at,
	scores_json, registration_words_json, repeated_words_json, recalled_words_json`

// GetAssessment retrieves an assessment by ID.
func (s *SQLiteStore) GetAssessment(ctx context.Context, assessmentID string) (*domain.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE assessment_id = ?`
	a, err := scanAssessment(s.db.QueryRowContext(ctx, query, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssessments returns a user's assessments, newest first. A non-positive
// limit returns all of them.
func (s *SQLiteStore) ListAssessments(ctx context.Context, userID string, limit int) ([]*domain.Assessment, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + assessmentColumns + `
		FROM assessments WHERE user_id = ?
		ORDER BY completed_at DESC, assessment_id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close assessment rows", "error", closeErr)
		}
	}()

	var out []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

// CountAssessments returns the number of assessments completed by a user.
func (s *SQLiteStore) CountAssessments(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assessments WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count assessments: %w", err)
	}
	return n, nil
}

// DeleteAssessmentsBefore removes assessments completed before cutoff.
func (s *SQLiteStore) DeleteAssessmentsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.withRetry(ctx, "delete assessments", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE completed_at < ?`, cutoff.Unix())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry serializes writes and retries them on SQLite lock contention.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := shared.Retry(ctx, shared.SQLiteWritePolicy, op, fn); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var startedAt, completedAt int64
	var scoresJSON, regJSON, repeatedJSON, recalledJSON string

	err := row.Scan(
		&a.AssessmentID, &a.UserID, &startedAt, &completedAt,
		&scoresJSON, &regJSON, &repeatedJSON, &recalledJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan assessment row: %w", err)
	}

	a.StartedAt = time.Unix(startedAt, 0)
	a.CompletedAt = time.Unix(completedAt, 0)

	var scores scoring.Snapshot
	if err := json.Unmarshal([]byte(scoresJSON), &scores); err != nil {
		return nil, fmt.Errorf("decode scores for %s: %w", a.AssessmentID, err)
	}
	a.Scores = scores
	if err := unmarshalWords(regJSON, &a.RegistrationWords); err != nil {
		return nil, err
	}
	if err := unmarshalWords(repeatedJSON, &a.RepeatedWords); err != nil {
		return nil, err
	}
	if err := unmarshalWords(recalledJSON, &a.RecalledWords); err != nil {
		return nil, err
	}
	return &a, nil
}

func marshalWords(words []string) (string, error) {
	if words == nil {
		words = []string{}
	}
	b, err := json.Marshal(words)
	if err != nil {
		return "", fmt.Errorf("marshal words: %w", err)
	}
	return string(b), nil
}

func unmarshalWords(raw string, dst *[]string) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode words: %w", err)
	}
	return nil
}
