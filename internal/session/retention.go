package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/webhook-chat/internal/store"
)

// StartRetentionWorker deletes session records older than retention on every
// tick until ctx is canceled.
func StartRetentionWorker(ctx context.Context, repo store.Repository, retention, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		pruneSessions(ctx, repo, retention)
		for {
			select {
			case <-ctx.Done():
				slog.Info("Retention worker stopped")
				return
			case <-ticker.C:
				pruneSessions(ctx, repo, retention)
			}
		}
	}()
}

func pruneSessions(ctx context.Context, repo store.Repository, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	deleted, err := repo.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune session records", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Pruned session records", "deleted", deleted, "cutoff", cutoff)
	}
}
