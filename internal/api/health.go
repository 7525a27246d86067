package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db       Pinger
	relay    interface{ Configured() bool }
	sessions interface{ Count() int }
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler. db may be nil when sessions
// are not persisted.
func NewHealthHandler(db Pinger, relay interface{ Configured() bool }, sessions interface{ Count() int }) *HealthHandler {
	return &HealthHandler{db: db, relay: relay, sessions: sessions, timeout: defaultHealthCheckTimeout}
}

// Health returns the health status of the API and its dependencies. A missing
// webhook address degrades the status but keeps the process serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			checks["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if h.relay == nil || !h.relay.Configured() {
		status["status"] = "degraded"
		checks["webhook"] = "not configured"
	} else {
		checks["webhook"] = "configured"
	}

	if h.sessions != nil {
		status["active_sessions"] = h.sessions.Count()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
