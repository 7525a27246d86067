// Package session bridges browser chat pages to lifecycle controllers over
// WebSocket.
package session

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Manager tracks the WebSocket connection of every live page session.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]*websocket.Conn),
	}
}

// GetActive returns the connection for a session, or nil.
func (m *Manager) GetActive(sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID]
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds the connection of a new page session.
func (m *Manager) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[sessionID] = conn
	slog.Info("Page session registered", "session_id", sessionID)
}

// Unregister removes a session if conn is still its current connection.
func (m *Manager) Unregister(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[sessionID]; exists && current == conn {
		delete(m.active, sessionID)
		slog.Info("Page session unregistered", "session_id", sessionID)
	}
}

// CloseAll terminates every live session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	for sid, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		slog.Info("Page session closed", "session_id", sid)
	}
}
