// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/webhook-chat/internal/domain"
)

// Repository defines the interface for persisting chat page session records.
type Repository interface {
	// CreateSession inserts a new session record.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID. Returns nil, nil if absent.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpdatePhase records a phase change and stamps the matching timestamp
	// column (started, completed or closed).
	UpdatePhase(ctx context.Context, sessionID, phase string, at time.Time) error

	// RecordError stores the last UI-local error reported for a session.
	RecordError(ctx context.Context, sessionID, message string) error

	// DeleteSessionsBefore removes records last updated before cutoff.
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
