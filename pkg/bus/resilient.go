package bus

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/internal/metrics"
)

// Pinger is implemented by adapters that can probe broker reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Resilient wraps a PubSub so broker unavailability degrades the hub to
// single-node mode instead of failing publish calls: the error is logged,
// the degraded flag is raised, and a background probe with exponential
// backoff clears it when the broker returns. Local delivery is never
// affected.
type Resilient struct {
	inner  PubSub
	logger *logging.Logger
	min    time.Duration
	max    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	degraded atomic.Bool
	mu       sync.Mutex
	probing  bool
}

// NewResilient wraps inner with degraded-mode handling.
func NewResilient(inner PubSub, logger *logging.Logger, min, max time.Duration) *Resilient {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Resilient{
		inner:  inner,
		logger: logger,
		min:    min,
		max:    max,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Degraded reports whether the hub is running in single-node mode.
func (r *Resilient) Degraded() bool {
	return r.degraded.Load()
}

// Publish implements PubSub. Publish errors never propagate to callers.
func (r *Resilient) Publish(ctx context.Context, topic string, payload []byte) error {
	if r.degraded.Load() {
		metrics.BusPublishes.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := r.inner.Publish(ctx, topic, payload); err != nil {
		r.degrade(err)
		metrics.BusPublishes.WithLabelValues("failed").Inc()
		return nil
	}

	metrics.BusPublishes.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe implements PubSub.
func (r *Resilient) Subscribe(ctx context.Context, topic string, handler Handler) (io.Closer, error) {
	return r.inner.Subscribe(ctx, topic, handler)
}

// Close implements PubSub.
func (r *Resilient) Close() error {
	r.cancel()
	return r.inner.Close()
}

func (r *Resilient) degrade(cause error) {
	if r.degraded.CompareAndSwap(false, true) {
		metrics.BusDegraded.Set(1)
		r.logger.Warn("cluster bus unavailable, running in single-node mode", "error", cause)
	}

	r.mu.Lock()
	if r.probing {
		r.mu.Unlock()
		return
	}
	r.probing = true
	r.mu.Unlock()

	go r.probe()
}

// probe retries the broker with exponential backoff until it answers.
func (r *Resilient) probe() {
	defer func() {
		r.mu.Lock()
		r.probing = false
		r.mu.Unlock()
	}()

	delay := r.min
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(delay):
		}

		if r.ping() == nil {
			r.degraded.Store(false)
			metrics.BusDegraded.Set(0)
			r.logger.Info("cluster bus recovered")
			return
		}

		delay *= 2
		if delay > r.max {
			delay = r.max
		}
	}
}

func (r *Resilient) ping() error {
	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()

	if p, ok := r.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	// Adapters without a probe fall back to an empty publish.
	return r.inner.Publish(ctx, "realtime.probe", nil)
}
