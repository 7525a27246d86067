package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/webhook-chat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "data", "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSessionPhaseHistory(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	created := time.Unix(1_700_000_000, 0)

	if err := repo.CreateSession(ctx, &domain.Session{
		SessionID: "s-1",
		Phase:     "welcome",
		RemoteIP:  "10.0.0.7",
		CreatedAt: created,
		UpdatedAt: created,
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	steps := []string{"active", "completed", "closed"}
	for i, phase := range steps {
		if err := repo.UpdatePhase(ctx, "s-1", phase, created.Add(time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("UpdatePhase(%s) failed: %v", phase, err)
		}
	}

	got, err := repo.GetSession(ctx, "s-1")
	if err != nil || got == nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Phase != "closed" || got.RemoteIP != "10.0.0.7" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(created.Add(time.Minute)) {
		t.Fatalf("unexpected started_at: %v", got.StartedAt)
	}
	if got.CompletedAt == nil || got.ClosedAt == nil {
		t.Fatal("expected completed_at and closed_at to be set")
	}
	if got.Duration(time.Now()) != 2*time.Minute {
		t.Fatalf("unexpected duration %v", got.Duration(time.Now()))
	}
}

func TestGetSessionMissing(t *testing.T) {
	repo := newTestStore(t)
	got, err := repo.GetSession(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestUpdateUnknownSessionFails(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.UpdatePhase(context.Background(), "ghost", "active", time.Now()); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestRecordErrorAndRetention(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	now := time.Now()

	_ = repo.CreateSession(ctx, &domain.Session{SessionID: "old", Phase: "closed", CreatedAt: old, UpdatedAt: old})
	_ = repo.CreateSession(ctx, &domain.Session{SessionID: "new", Phase: "active", CreatedAt: now, UpdatedAt: now})

	if err := repo.RecordError(ctx, "new", "widget mount failed"); err != nil {
		t.Fatalf("RecordError failed: %v", err)
	}

	deleted, err := repo.DeleteSessionsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSessionsBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	got, _ := repo.GetSession(ctx, "new")
	if got == nil || got.LastError != "widget mount failed" {
		t.Fatalf("expected recorded error, got %+v", got)
	}
	if gone, _ := repo.GetSession(ctx, "old"); gone != nil {
		t.Fatal("expected old session to be deleted")
	}
}
