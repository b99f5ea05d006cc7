package shared

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy controls Retry's attempt count and backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// SQLiteWritePolicy retries SQLite writes that hit lock contention.
var SQLiteWritePolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   50 * time.Millisecond,
	Retryable:   IsSQLiteConflictError,
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done. Delays double after each attempt.
func Retry(ctx context.Context, p RetryPolicy, op string, fn func() error) error {
	attempts := max(p.MaxAttempts, 1)
	var err error
	for i := range attempts {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		delay := p.BaseDelay * time.Duration(1<<i)
		slog.Debug("Retrying operation", "op", op, "attempt", i+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
