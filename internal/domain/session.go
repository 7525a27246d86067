// Package domain contains core domain types for the chat relay server.
package domain

import (
	"time"
)

// Session is the persisted lifecycle record of one chat page session. It
// holds phase metadata only, never conversation content.
type Session struct {
	SessionID   string     `json:"session_id"`
	Phase       string     `json:"phase"`
	RemoteIP    string     `json:"remote_ip,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsFinished returns true once the visitor reached the thank-you screen.
func (s *Session) IsFinished() bool {
	return s.ClosedAt != nil
}

// Duration returns how long the chat was open, from start until close or
// until now for sessions still running. Returns 0 if the chat never started.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := now
	if s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	if end.Before(*s.StartedAt) {
		return 0
	}
	return end.Sub(*s.StartedAt)
}
