package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/webhook-chat/internal/relay"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ChatPath is the public relay path the chat widget posts to.
const ChatPath = "/api/chat"

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Fixed client-visible error messages. Nothing else about a failure is
// returned to the browser.
const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgInternalError    = "Internal Server Error"
	msgBodyTooLarge     = "Request Entity Too Large"
)

// Forwarder sends one chat payload to the backend.
type Forwarder interface {
	Forward(ctx context.Context, req relay.Request) (*relay.Response, error)
}

// RelayHandler exposes the backend webhook behind ChatPath.
type RelayHandler struct {
	forwarder   Forwarder
	maxBodySize int64
	logger      *slog.Logger
}

// NewRelayHandler creates a relay handler. A non-positive maxBodySize uses 1MB.
func NewRelayHandler(forwarder Forwarder, maxBodySize int64, logger *slog.Logger) *RelayHandler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayHandler{forwarder: forwarder, maxBodySize: maxBodySize, logger: logger}
}

// RegisterRoutes registers the relay on every method so non-POST requests get
// the relay's own 405 body.
func (h *RelayHandler) RegisterRoutes(r chi.Router) {
	r.HandleFunc(ChatPath, h.ServeHTTP)
}

// ServeHTTP relays a POST to the backend and mirrors its status and body.
func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		Error(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Relay request body too large", "limit", tooLarge.Limit, "request_id", reqID)
			Error(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		h.logger.Error("Failed to read relay request body", "error", err, "request_id", reqID)
		Error(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	resp, err := h.forwarder.Forward(r.Context(), relay.Request{
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	if err != nil {
		h.logger.Error("Failed to relay chat request to webhook", "error", err, "request_id", reqID)
		Error(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.logger.Debug("Relayed chat request", "status", resp.Status, "request_bytes", len(body), "response_bytes", len(resp.Body), "request_id", reqID)
	RawJSON(w, resp.Status, resp.Body)
}
