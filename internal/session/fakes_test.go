package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/webhook-chat/internal/domain"
)

// memRepo is an in-memory store.Repository.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	phases   map[string][]string
	cutoffs  []time.Time
	failNext error
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions: make(map[string]*domain.Session),
		phases:   make(map[string][]string),
	}
}

func (m *memRepo) CreateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	cp := *s
	m.sessions[s.SessionID] = &cp
	return nil
}

func (m *memRepo) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) UpdatePhase(_ context.Context, id, phase string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	s, ok := m.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	s.Phase = phase
	s.UpdatedAt = at
	m.phases[id] = append(m.phases[id], phase)
	return nil
}

func (m *memRepo) RecordError(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	s.LastError = message
	return nil
}

func (m *memRepo) DeleteSessionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	var n int64
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

func (m *memRepo) phaseHistory(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.phases[id]...)
}

func (m *memRepo) onlySession() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		cp := *s
		return &cp
	}
	return nil
}

// fakeSender records every command as decoded JSON.
type fakeSender struct {
	mu     sync.Mutex
	msgs   []map[string]interface{}
	onSend func(msg map[string]interface{})
	err    error
}

func (f *fakeSender) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return nil
}

func (f *fakeSender) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m["type"].(string))
	}
	return out
}

func (f *fakeSender) last() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return nil
	}
	return f.msgs[len(f.msgs)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
