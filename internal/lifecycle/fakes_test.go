package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSurface struct {
	mu          sync.Mutex
	visible     map[Region]bool
	disabled    bool
	placeholder string
	errMsg      string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{visible: map[Region]bool{
		RegionStartControl: true,
		RegionWelcome:      true,
	}}
}

func (f *fakeSurface) SetVisible(region Region, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[region] = visible
	return nil
}

func (f *fakeSurface) DisableInput(placeholder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = true
	f.placeholder = placeholder
	return nil
}

func (f *fakeSurface) ShowError(message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errMsg = message
	return nil
}

func (f *fakeSurface) isVisible(region Region) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[region]
}

func (f *fakeSurface) inputDisabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

func (f *fakeSurface) errorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

type fakeWidget struct {
	mu    sync.Mutex
	calls int
	cfg   MountConfig
	err   error
	panic bool
}

func (f *fakeWidget) Mount(_ context.Context, cfg MountConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cfg = cfg
	if f.panic {
		panic("widget exploded")
	}
	return f.err
}

func (f *fakeWidget) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSource struct {
	mu     sync.Mutex
	images []string
	subs   map[int]func()
	nextID int
	scans  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[int]func())}
}

func (f *fakeSource) Observe(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeSource) Images() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return append([]string(nil), f.images...)
}

// mutate replaces the image set and delivers one batch to every subscriber.
func (f *fakeSource) mutate(images ...string) {
	f.mu.Lock()
	f.images = images
	subs := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type transition struct {
	from, to Phase
}

type fakeRecorder struct {
	mu            sync.Mutex
	transitions   []transition
	mountFailures int
}

func (f *fakeRecorder) OnPhase(from, to Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, transition{from, to})
}

func (f *fakeRecorder) OnMountFailure(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mountFailures++
}

func (f *fakeRecorder) snapshot() []transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transition(nil), f.transitions...)
}

// runNext executes the next piece of work queued on the controller loop.
func runNext(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case fn := <-c.events:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for controller event")
	}
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
