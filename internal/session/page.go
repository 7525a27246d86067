package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/webhook-chat/internal/lifecycle"
)

var (
	// ErrMountFailed is reported when the page could not mount the widget.
	ErrMountFailed = errors.New("session: widget mount failed")
	// ErrMountTimeout is reported when the page never acknowledged a mount.
	ErrMountTimeout = errors.New("session: widget mount not acknowledged")
)

// sender delivers one JSON command to the page.
type sender interface {
	Send(v interface{}) error
}

// remotePage is the browser page as seen by the controller: a Surface, a
// Widget and the chat MutationSource, all driven through page commands.
// Snapshot updates and subscriber callbacks run on the controller loop.
type remotePage struct {
	out          sender
	mountTimeout time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	html    string
	subs    map[int]func()
	nextSub int
	pending chan error
}

func newRemotePage(out sender, mountTimeout time.Duration, logger *slog.Logger) *remotePage {
	if logger == nil {
		logger = slog.Default()
	}
	return &remotePage{
		out:          out,
		mountTimeout: mountTimeout,
		logger:       logger,
		subs:         make(map[int]func()),
	}
}

// SetVisible implements lifecycle.Surface.
func (p *remotePage) SetVisible(region lifecycle.Region, visible bool) error {
	return p.out.Send(map[string]interface{}{
		"type":    "visibility",
		"region":  string(region),
		"visible": visible,
	})
}

// DisableInput implements lifecycle.Surface.
func (p *remotePage) DisableInput(placeholder string) error {
	return p.out.Send(map[string]string{
		"type":        "disable_input",
		"placeholder": placeholder,
	})
}

// ShowError implements lifecycle.Surface.
func (p *remotePage) ShowError(message string) error {
	return p.out.Send(map[string]string{
		"type":    "error",
		"message": message,
	})
}

// Mount asks the page to mount the widget and waits for its acknowledgment.
func (p *remotePage) Mount(ctx context.Context, cfg lifecycle.MountConfig) error {
	ack := make(chan error, 1)
	p.mu.Lock()
	p.pending = ack
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.pending == ack {
			p.pending = nil
		}
		p.mu.Unlock()
	}()

	if err := p.out.Send(map[string]interface{}{"type": "mount", "config": cfg}); err != nil {
		return fmt.Errorf("send mount command: %w", err)
	}

	timer := time.NewTimer(p.mountTimeout)
	defer timer.Stop()

	select {
	case err := <-ack:
		return err
	case <-timer.C:
		return ErrMountTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveMount delivers the page's mount acknowledgment.
func (p *remotePage) resolveMount(err error) {
	p.mu.Lock()
	ack := p.pending
	p.mu.Unlock()
	if ack == nil {
		p.logger.Debug("Mount acknowledgment without pending mount")
		return
	}
	select {
	case ack <- err:
	default:
	}
}

// Observe implements lifecycle.MutationSource. The page runs its own
// observer only while at least one subscriber exists.
func (p *remotePage) Observe(fn func()) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	first := len(p.subs) == 1
	p.mu.Unlock()

	if first {
		if err := p.out.Send(map[string]string{
			"type":   "observe",
			"target": "#" + string(lifecycle.RegionChatSurface),
		}); err != nil {
			p.logger.Warn("Failed to start page observer", "error", err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			last := len(p.subs) == 0
			p.mu.Unlock()

			if last {
				if err := p.out.Send(map[string]string{"type": "disconnect"}); err != nil {
					p.logger.Debug("Failed to stop page observer", "error", err)
				}
			}
		})
	}
}

// Images implements lifecycle.MutationSource.
func (p *remotePage) Images() []string {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()
	return lifecycle.ImagesInHTML(html)
}

// applySnapshot stores the latest chat surface markup and delivers one
// mutation batch to every subscriber.
func (p *remotePage) applySnapshot(html string) {
	p.mu.Lock()
	p.html = html
	subs := make([]func(), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (p *remotePage) observers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}
