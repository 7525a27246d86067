package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRelay bool

func (f fakeRelay) Configured() bool { return bool(f) }

type fakeCounter int

func (f fakeCounter) Count() int { return int(f) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		relay      fakeRelay
		wantCode   int
		wantStatus string
		wantDB     string
		wantHook   string
	}{
		{"healthy", fakePinger{}, true, http.StatusOK, "healthy", "ok", "configured"},
		{"database down", fakePinger{err: errors.New("closed")}, true, http.StatusServiceUnavailable, "degraded", "unreachable", "configured"},
		{"webhook missing", fakePinger{}, false, http.StatusOK, "degraded", "ok", "not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.relay, fakeCounter(2))
			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			var got struct {
				Status         string            `json:"status"`
				Checks         map[string]string `json:"checks"`
				ActiveSessions int               `json:"active_sessions"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if got.Status != tt.wantStatus || got.Checks["database"] != tt.wantDB || got.Checks["webhook"] != tt.wantHook {
				t.Fatalf("unexpected health %+v", got)
			}
			if got.ActiveSessions != 2 {
				t.Fatalf("expected 2 active sessions, got %d", got.ActiveSessions)
			}
		})
	}
}
