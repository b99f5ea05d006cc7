// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/cogcheck/internal/domain"
)

// Repository defines the interface for persisting users and completed assessments.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// SaveAssessment stores a completed assessment. Saving the same
	// assessment ID twice is an error.
	SaveAssessment(ctx context.Context, a *domain.Assessment) error

	// GetAssessment retrieves an assessment by ID. It returns nil, nil if absent.
	GetAssessment(ctx context.Context, assessmentID string) (*domain.Assessment, error)

	// ListAssessments returns a user's assessments, newest first.
	ListAssessments(ctx context.Context, userID string, limit int) ([]*domain.Assessment, error)

	// CountAssessments returns the number of assessments completed by a user.
	CountAssessments(ctx context.Context, userID string) (int, error)

	// DeleteAssessmentsBefore removes assessments completed before cutoff.
	DeleteAssessmentsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
