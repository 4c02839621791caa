// Package notify implements the store-and-retry queue for user
// notifications. Delivery is at-least-once: a notification is retried
// on a backoff schedule until it is acknowledged by the fanout path or
// its attempt budget is exhausted.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/internal/metrics"
	"github.com/astralfield/realtime/pkg/errors"
)

// Status is the lifecycle state of a queued notification.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Notification is a queued per-user notification.
type Notification struct {
	ID          string
	UserID      string
	Category    string
	Payload     json.RawMessage
	EnqueuedAt  time.Time
	Attempts    int
	Status      Status
	nextAttempt time.Time
	resolvedAt  time.Time
}

// Sender delivers a notification to its user. A non-nil error schedules
// a retry.
type Sender func(ctx context.Context, n Notification) error

// Recorder receives terminal outcomes, typically a persistence writer.
type Recorder func(n Notification)

// Options configures a Queue.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Backoff     []time.Duration
	Retention   time.Duration
	BufferSize  int
	Now         func() time.Time
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if len(o.Backoff) == 0 {
		o.Backoff = []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, time.Minute}
	}
	if o.Retention <= 0 {
		o.Retention = time.Hour
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Queue holds pending notifications and drives their delivery.
type Queue struct {
	opts   Options
	sender Sender
	record Recorder
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*Notification

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewQueue creates a queue. Start must be called to begin delivery.
func NewQueue(sender Sender, record Recorder, logger *logging.Logger, opts Options) *Queue {
	opts.defaults()
	return &Queue{
		opts:    opts,
		sender:  sender,
		record:  record,
		logger:  logger,
		entries: make(map[string]*Notification),
		done:    make(chan struct{}),
	}
}

// Enqueue queues a notification for delivery. It fails when the queue
// is at capacity.
func (q *Queue) Enqueue(userID, category string, payload json.RawMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.opts.BufferSize {
		return "", errors.New(errors.ErrorTypeInternal, "NOTIFY_QUEUE_FULL", "notification queue at capacity")
	}

	now := q.opts.Now()
	n := &Notification{
		ID:          xid.New().String(),
		UserID:      userID,
		Category:    category,
		Payload:     payload,
		EnqueuedAt:  now,
		Status:      StatusPending,
		nextAttempt: now,
	}
	q.entries[n.ID] = n
	metrics.NotificationsEnqueued.Inc()
	return n.ID, nil
}

// Start runs the delivery loop until ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	go q.run(ctx)
}

// Stop halts delivery. Pending notifications stay queued in memory
// until the process exits.
func (q *Queue) Stop() {
	q.once.Do(func() {
		if q.cancel == nil {
			return
		}
		q.cancel()
		<-q.done
	})
}

// Pending reports the number of unresolved notifications.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if e.Status == StatusPending {
			n++
		}
	}
	return n
}

// Lookup returns a snapshot of a queued notification.
func (q *Queue) Lookup(id string) (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return Notification{}, false
	}
	return *e, true
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	ticker := time.NewTicker(q.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Tick(ctx)
		}
	}
}

// Tick processes one delivery pass: attempts everything due, then
// expires terminal entries past retention.
func (q *Queue) Tick(ctx context.Context) {
	now := q.opts.Now()

	q.mu.Lock()
	var due []*Notification
	for _, e := range q.entries {
		if e.Status == StatusPending && !e.nextAttempt.After(now) {
			due = append(due, e)
		}
	}
	q.mu.Unlock()

	for _, e := range due {
		q.attempt(ctx, e, now)
	}

	q.expire(now)
}

func (q *Queue) attempt(ctx context.Context, e *Notification, now time.Time) {
	err := q.sender(ctx, *e)

	q.mu.Lock()
	e.Attempts++
	if err == nil {
		e.Status = StatusDelivered
		e.resolvedAt = now
		metrics.NotificationOutcomes.WithLabelValues("delivered").Inc()
		q.mu.Unlock()
		q.record(*e)
		return
	}

	if e.Attempts >= q.opts.MaxAttempts {
		e.Status = StatusFailed
		e.resolvedAt = now
		metrics.NotificationOutcomes.WithLabelValues("failed").Inc()
		q.mu.Unlock()
		q.logger.Warn("notification exhausted retries",
			"notification_id", e.ID,
			"user_id", e.UserID,
			"attempts", e.Attempts,
		)
		q.record(*e)
		return
	}

	e.nextAttempt = now.Add(q.backoff(e.Attempts))
	metrics.NotificationOutcomes.WithLabelValues("retried").Inc()
	q.mu.Unlock()
}

// backoff returns the delay before the next attempt given the number of
// attempts already made. The schedule's last step repeats.
func (q *Queue) backoff(attempts int) time.Duration {
	idx := attempts - 1
	if idx >= len(q.opts.Backoff) {
		idx = len(q.opts.Backoff) - 1
	}
	return q.opts.Backoff[idx]
}

func (q *Queue) expire(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, e := range q.entries {
		if e.Status != StatusPending && now.Sub(e.resolvedAt) >= q.opts.Retention {
			delete(q.entries, id)
		}
	}
}
