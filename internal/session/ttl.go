package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/cogcheck/internal/shared"
)

// Pruner deletes stored assessments older than a cutoff.
type Pruner interface {
	DeleteAssessmentsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TTLConfig controls the background sweeper.
type TTLConfig struct {
	Interval time.Duration
	// SessionTTL is how long a session may sit idle before eviction.
	SessionTTL time.Duration
	// Retention is how long completed assessments are kept. Zero keeps
	// them forever.
	Retention time.Duration
}

// StartTTLWorker runs a background goroutine that periodically evicts idle
// sessions and prunes old assessments. It stops when ctx is done.
func StartTTLWorker(ctx context.Context, mgr *Manager, pruner Pruner, cfg TTLConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started",
			"interval", cfg.Interval,
			"session_ttl", cfg.SessionTTL,
			"retention", cfg.Retention,
		)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, mgr, pruner, cfg)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, mgr *Manager, pruner Pruner, cfg TTLConfig) {
	if cfg.SessionTTL > 0 {
		if n := mgr.Sweep(ctx, cfg.SessionTTL); n > 0 {
			slog.Info("TTL worker evicted idle sessions", "count", n, "remaining", mgr.Len())
		}
	}

	if cfg.Retention <= 0 || pruner == nil {
		return
	}
	cutoff := mgr.now().Add(-cfg.Retention)
	var deleted int64
	err := shared.Retry(ctx, shared.SQLiteWritePolicy, "prune assessments", func() error {
		var err error
		deleted, err = pruner.DeleteAssessmentsBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("TTL worker: context canceled during prune", "error", err)
			return
		}
		slog.Error("TTL worker failed to prune assessments", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker pruned assessments", "count", deleted, "cutoff", cutoff)
	}
}
