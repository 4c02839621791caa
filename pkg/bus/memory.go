package bus

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Memory is an in-process PubSub for single-node deployments and tests.
// Handlers run synchronously on the publisher's goroutine.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]map[uint64]Handler
	seq  atomic.Uint64
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{
		subs: make(map[string]map[uint64]Handler),
	}
}

// Publish implements PubSub.
func (b *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// Subscribe implements PubSub.
func (b *Memory) Subscribe(ctx context.Context, topic string, handler Handler) (io.Closer, error) {
	id := b.seq.Add(1)

	b.mu.Lock()
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = handler
	b.mu.Unlock()

	return closerFunc(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.subs[topic]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.subs, topic)
			}
		}
		return nil
	}), nil
}

// Close implements PubSub.
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[uint64]Handler)
	return nil
}
