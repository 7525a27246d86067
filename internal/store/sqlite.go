package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/webhook-chat/internal/domain"
	_ "modernc.org/sqlite"
)

// phaseColumns maps a phase name to the timestamp column it stamps.
var phaseColumns = map[string]string{
	"active":    "started_at",
	"completed": "completed_at",
	"closed":    "closed_at",
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

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
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		remote_ip TEXT,
		last_error TEXT,
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		closed_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);
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

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO chat_sessions (session_id, phase, remote_ip, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	var remoteIP interface{}
	if session.RemoteIP != "" {
		remoteIP = session.RemoteIP
	}

	_, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.Phase, remoteIP,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, phase, remote_ip, last_error,
		       created_at, started_at, completed_at, closed_at, updated_at
		FROM chat_sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.Session
	var remoteIP, lastError sql.NullString
	var startedAt, completedAt, closedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.SessionID, &session.Phase, &remoteIP, &lastError,
		&createdAt, &startedAt, &completedAt, &closedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.RemoteIP = remoteIP.String
	session.LastError = lastError.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	session.StartedAt = nullableTime(startedAt)
	session.CompletedAt = nullableTime(completedAt)
	session.ClosedAt = nullableTime(closedAt)

	return &session, nil
}

// UpdatePhase records a phase change for a session.
func (s *SQLiteStore) UpdatePhase(ctx context.Context, sessionID, phase string, at time.Time) error {
	query := `UPDATE chat_sessions SET phase = ?, updated_at = ?`
	args := []interface{}{phase, at.Unix()}
	if column, ok := phaseColumns[phase]; ok {
		query += `, ` + column + ` = ?`
		args = append(args, at.Unix())
	}
	query += ` WHERE session_id = ?`
	args = append(args, sessionID)

	return s.execOne(ctx, "update phase", sessionID, query, args...)
}

// RecordError stores the last error reported for a session.
func (s *SQLiteStore) RecordError(ctx context.Context, sessionID, message string) error {
	query := `UPDATE chat_sessions SET last_error = ?, updated_at = ? WHERE session_id = ?`
	return s.execOne(ctx, "record error", sessionID, query, message, time.Now().Unix(), sessionID)
}

func (s *SQLiteStore) execOne(ctx context.Context, op, sessionID, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("Session update affected 0 rows", "op", op, "session_id", sessionID)
		return fmt.Errorf("%s: session not found", op)
	}
	return nil
}

// DeleteSessionsBefore removes session records last updated before cutoff.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete old sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}
