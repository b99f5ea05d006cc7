package domain

import (
	"time"

	"github.com/ashureev/cogcheck/internal/scoring"
)

// Assessment is the persisted result of a completed interview.
type Assessment struct {
	AssessmentID      string           `json:"assessment_id"`
	UserID            string           `json:"user_id"`
	StartedAt         time.Time        `json:"started_at"`
	CompletedAt       time.Time        `json:"completed_at"`
	RegistrationWords []string         `json:"registration_words"`
	RepeatedWords     []string         `json:"repeated_words"`
	RecalledWords     []string         `json:"recalled_words"`
	Scores            scoring.Snapshot `json:"scores"`
}

// Overall returns the overall score entry.
func (a *Assessment) Overall() scoring.Entry {
	return a.Scores.Overall()
}

// Duration returns the time taken to complete the interview.
func (a *Assessment) Duration() time.Duration {
	return a.CompletedAt.Sub(a.StartedAt)
}
