package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// WindowStats is a point-in-time snapshot of the current interval.
type WindowStats struct {
	Messages    int64     `json:"messages"`
	Connections int64     `json:"connections"`
	Errors      int64     `json:"errors"`
	Since       time.Time `json:"since"`
}

// Window counts messages, connections, and errors per fixed interval for
// the health surface. Counters reset at each interval boundary; the reset
// loop is an explicitly cancellable task, stopped via Stop or context
// cancellation.
type Window struct {
	interval time.Duration

	messages    atomic.Int64
	connections atomic.Int64
	errors      atomic.Int64

	mu    sync.Mutex
	since time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWindow creates a window with the given reset interval.
func NewWindow(interval time.Duration) *Window {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Window{
		interval: interval,
		since:    time.Now(),
	}
}

// Start launches the periodic reset loop.
func (w *Window) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.reset()
			}
		}
	}()
}

// Stop cancels the reset loop and waits for it to exit.
func (w *Window) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Window) reset() {
	w.messages.Store(0)
	w.connections.Store(0)
	w.errors.Store(0)
	w.mu.Lock()
	w.since = time.Now()
	w.mu.Unlock()
}

// AddMessage records one delivered message in the current interval.
func (w *Window) AddMessage() { w.messages.Add(1) }

// AddConnection records one accepted connection in the current interval.
func (w *Window) AddConnection() { w.connections.Add(1) }

// AddError records one error in the current interval.
func (w *Window) AddError() { w.errors.Add(1) }

// Snapshot returns the current interval counts.
func (w *Window) Snapshot() WindowStats {
	w.mu.Lock()
	since := w.since
	w.mu.Unlock()

	return WindowStats{
		Messages:    w.messages.Load(),
		Connections: w.connections.Load(),
		Errors:      w.errors.Load(),
		Since:       since,
	}
}
