package persist

import (
	"context"
	"sync"
	"time"

	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/internal/metrics"
)

const writeTimeout = 5 * time.Second

// AsyncWriter decouples storage writes from the delivery path. Jobs go
// through a bounded queue served by a single worker; when the queue is
// full the write is dropped and counted, never blocked on.
type AsyncWriter struct {
	store  Store
	logger *logging.Logger

	jobs chan func(context.Context) error

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewAsyncWriter starts the write worker.
func NewAsyncWriter(store Store, logger *logging.Logger, buffer int) *AsyncWriter {
	if buffer <= 0 {
		buffer = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &AsyncWriter{
		store:  store,
		logger: logger,
		jobs:   make(chan func(context.Context) error, buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// SaveChatMessage queues a chat message write.
func (w *AsyncWriter) SaveChatMessage(msg ChatMessage) {
	w.submit(func(ctx context.Context) error {
		return w.store.SaveChatMessage(ctx, msg)
	})
}

// SaveDirectMessage queues a direct message write.
func (w *AsyncWriter) SaveDirectMessage(msg DirectMessage) {
	w.submit(func(ctx context.Context) error {
		return w.store.SaveDirectMessage(ctx, msg)
	})
}

// SaveNotification queues a notification outcome write.
func (w *AsyncWriter) SaveNotification(rec NotificationRecord) {
	w.submit(func(ctx context.Context) error {
		return w.store.SaveNotification(ctx, rec)
	})
}

func (w *AsyncWriter) submit(job func(context.Context) error) {
	select {
	case w.jobs <- job:
	default:
		metrics.PersistWrites.WithLabelValues("dropped").Inc()
		w.logger.Warn("persistence queue full, dropping write")
	}
}

func (w *AsyncWriter) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case job := <-w.jobs:
					w.exec(job)
				default:
					return
				}
			}
		case job := <-w.jobs:
			w.exec(job)
		}
	}
}

func (w *AsyncWriter) exec(job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := job(ctx); err != nil {
		metrics.PersistWrites.WithLabelValues("failed").Inc()
		w.logger.Error("persistence write failed", "error", err)
		return
	}
	metrics.PersistWrites.WithLabelValues("ok").Inc()
}

// Stop drains queued writes and stops the worker.
func (w *AsyncWriter) Stop() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}
