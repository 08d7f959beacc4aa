package flow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFunc is one polling attempt. Each tick gets a single
// best-effort run with zero retries; the next tick is the retry
// mechanism.
type TaskFunc func(ctx context.Context)

// Task is a cancellable fixed-interval poller whose lifetime is tied
// to the view that owns it. Stopping cancels the in-flight attempt's
// context, so a torn-down view can no longer be updated.
type Task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	log      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewTask creates a stopped task.
func NewTask(name string, interval time.Duration, fn TaskFunc, log *zap.Logger) *Task {
	return &Task{name: name, interval: interval, fn: fn, log: log}
}

// Start runs the task immediately and then on every interval tick
// until Stop. Starting a running task is a no-op.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.loop(ctx, t.done)
	t.log.Debug("task started", zap.String("task", t.name), zap.Duration("interval", t.interval))
}

// Stop cancels the task and waits for the loop to exit.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done
	t.log.Debug("task stopped", zap.String("task", t.name))
}

// Running reports whether the task loop is active.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t.fn(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fn(ctx)
		}
	}
}
