package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/webhook-chat/internal/lifecycle"
	"github.com/ashureev/webhook-chat/internal/shared"
	"github.com/ashureev/webhook-chat/internal/store"
)

const (
	recorderQueueSize    = 32
	recorderWriteTimeout = 5 * time.Second
	recorderCloseTimeout = 5 * time.Second
)

type recordOp struct {
	name string
	run  func(ctx context.Context) error
}

// storeRecorder persists lifecycle events off the controller loop. Writes
// for one session are applied in order by a single worker.
type storeRecorder struct {
	repo      store.Repository
	sessionID string
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan recordOp
	wg     sync.WaitGroup
}

func newStoreRecorder(repo store.Repository, sessionID string, logger *slog.Logger) *storeRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &storeRecorder{
		repo:      repo,
		sessionID: sessionID,
		logger:    logger,
		queue:     make(chan recordOp, recorderQueueSize),
	}
	r.wg.Add(1)
	go r.process()
	return r
}

// OnPhase implements lifecycle.Recorder.
func (r *storeRecorder) OnPhase(_, to lifecycle.Phase) {
	at := time.Now()
	r.enqueue(recordOp{name: "update phase", run: func(ctx context.Context) error {
		return r.repo.UpdatePhase(ctx, r.sessionID, to.String(), at)
	}})
}

// OnMountFailure implements lifecycle.Recorder.
func (r *storeRecorder) OnMountFailure(err error) {
	msg := err.Error()
	r.enqueue(recordOp{name: "record error", run: func(ctx context.Context) error {
		return r.repo.RecordError(ctx, r.sessionID, msg)
	}})
}

func (r *storeRecorder) enqueue(op recordOp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Debug("Recorder closed, dropping op", "op", op.name, "session_id", r.sessionID)
		return
	}
	select {
	case r.queue <- op:
	default:
		r.logger.Warn("Recorder queue full, dropping op", "op", op.name, "session_id", r.sessionID)
	}
}

func (r *storeRecorder) process() {
	defer r.wg.Done()
	for op := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
		if err := withRetry(ctx, op.run); err != nil {
			r.logger.Error("Failed to persist session event", "op", op.name, "session_id", r.sessionID, "error", err)
		}
		cancel()
	}
}

// Close flushes queued writes and stops the worker.
func (r *storeRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(recorderCloseTimeout):
		r.logger.Warn("Recorder flush timeout", "session_id", r.sessionID)
	}
}

func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	return shared.RetryOnConflict(ctx, shared.DefaultConflictAttempts, shared.DefaultConflictDelay, op)
}
