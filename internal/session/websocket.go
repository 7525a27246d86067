package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ashureev/webhook-chat/internal/domain"
	"github.com/ashureev/webhook-chat/internal/lifecycle"
	"github.com/ashureev/webhook-chat/internal/store"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	// maxMessageSize bounds one page message; chat surface snapshots can be large.
	maxMessageSize = 4 << 20
	writeTimeout   = 5 * time.Second
)

// HandlerConfig configures page sessions.
type HandlerConfig struct {
	Mount         lifecycle.MountConfig
	Marker        lifecycle.Marker
	MountTimeout  time.Duration
	AllowedOrigin string
	IsDev         bool
}

// WebSocketHandler runs one lifecycle controller per connected page.
type WebSocketHandler struct {
	repo store.Repository
	sm   *Manager
	cfg  HandlerConfig
}

// NewWebSocketHandler creates a new WebSocket handler. repo may be nil, in
// which case nothing is persisted.
func NewWebSocketHandler(repo store.Repository, sm *Manager, cfg HandlerConfig) *WebSocketHandler {
	if cfg.MountTimeout <= 0 {
		cfg.MountTimeout = 30 * time.Second
	}
	return &WebSocketHandler{repo: repo, sm: sm, cfg: cfg}
}

// wsSender writes JSON commands to the page.
type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// clientMessage is what the page sends.
type clientMessage struct {
	Type  string `json:"type"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	logger := slog.Default().With("session_id", sessionID)
	remoteIP := ipFromRequest(r)
	logger.Info("WebSocket connection request", "ip", remoteIP)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(maxMessageSize)

	h.sm.Register(sessionID, ws)
	defer h.sm.Unregister(sessionID, ws)

	out := &wsSender{conn: ws}
	page := newRemotePage(out, h.cfg.MountTimeout, logger)

	ctrlCfg := lifecycle.Config{
		Mount:  h.cfg.Mount,
		Marker: h.cfg.Marker,
		Logger: logger,
	}
	var rec *storeRecorder
	if h.repo != nil {
		rec = h.openRecord(r.Context(), sessionID, remoteIP, logger)
		if rec != nil {
			ctrlCfg.Recorder = rec
		}
	}
	ctrl := lifecycle.NewController(page, page, page, ctrlCfg)

	ctx, cancel := context.WithCancel(r.Context())
	go ctrl.Run(ctx)

	if err := out.Send(map[string]string{"type": "hello", "session_id": sessionID}); err != nil {
		logger.Debug("Failed to send hello", "error", err)
	}

	h.readLoop(ctx, ws, out, ctrl, page, logger)

	cancel()
	<-ctrl.Done()
	if rec != nil {
		rec.Close()
	}
	logger.Info("Page session ended", "phase", ctrl.Phase().String())
}

func (h *WebSocketHandler) openRecord(ctx context.Context, sessionID, remoteIP string, logger *slog.Logger) *storeRecorder {
	now := time.Now()
	err := withRetry(ctx, func(ctx context.Context) error {
		return h.repo.CreateSession(ctx, &domain.Session{
			SessionID: sessionID,
			Phase:     lifecycle.PhaseWelcome.String(),
			RemoteIP:  remoteIP,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		logger.Error("Failed to create session record", "error", err)
		return nil
	}
	return newStoreRecorder(h.repo, sessionID, logger)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

//nolint:gocyclo // Message dispatch is kept in one switch to mirror the page protocol.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, out sender, ctrl *lifecycle.Controller, page *remotePage, logger *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				logger.Debug("WebSocket closed by client")
			} else {
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Ignoring malformed page message", "error", err)
			continue
		}

		switch msg.Type {
		case "start":
			err = ctrl.Start()
		case "end":
			err = ctrl.End()
		case "mutation":
			html := msg.HTML
			err = ctrl.Post(func() { page.applySnapshot(html) })
		case "mounted":
			page.resolveMount(nil)
		case "mount_failed":
			page.resolveMount(fmt.Errorf("%w: %s", ErrMountFailed, msg.Error))
		case "ping":
			if sendErr := out.Send(map[string]string{"type": "pong"}); sendErr != nil {
				logger.Debug("Failed to send pong", "error", sendErr)
			}
		default:
			logger.Debug("Unknown page message", "type", msg.Type)
		}

		if errors.Is(err, lifecycle.ErrStopped) {
			return
		}
	}
}

func ipFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
