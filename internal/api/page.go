package api

import (
	"net/http"

	"github.com/ashureev/webhook-chat/internal/lifecycle"
	"github.com/go-chi/chi/v5"
)

// PageConfig is what the embedded page needs before it connects. It carries
// the public relay path, never the backend webhook address.
type PageConfig struct {
	RelayPath        string                `json:"relayPath"`
	SessionPath      string                `json:"sessionPath"`
	CompletionMarker string                `json:"completionMarker"`
	Widget           lifecycle.MountConfig `json:"widget"`
}

// PageHandler serves the page bootstrap configuration.
type PageHandler struct {
	cfg PageConfig
}

// NewPageHandler creates a page handler.
func NewPageHandler(cfg PageConfig) *PageHandler {
	return &PageHandler{cfg: cfg}
}

// Config returns the page configuration.
func (h *PageHandler) Config(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.cfg)
}

// RegisterRoutes registers page routes.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.Config)
}
