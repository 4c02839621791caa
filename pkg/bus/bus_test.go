package bus

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralfield/realtime/internal/logging"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	var mu sync.Mutex
	var got [][]byte
	sub, err := b.Subscribe(ctx, "realtime.room.league:42", func(payload []byte) {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "realtime.room.league:42", []byte("one")))
	require.NoError(t, b.Publish(ctx, "realtime.room.league:99", []byte("other")))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, []byte("one"), got[0])
}

func TestMemoryUnsubscribe(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	calls := 0
	sub, err := b.Subscribe(ctx, "t", func([]byte) { calls++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "t", nil))
	require.NoError(t, sub.Close())
	require.NoError(t, b.Publish(ctx, "t", nil))

	assert.Equal(t, 1, calls)
}

// flaky fails publishes until recovered is set.
type flaky struct {
	mu        sync.Mutex
	recovered bool
	published int
}

func (f *flaky) Publish(ctx context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recovered {
		return errors.New("broker down")
	}
	f.published++
	return nil
}

func (f *flaky) Subscribe(ctx context.Context, topic string, handler Handler) (io.Closer, error) {
	return closerFunc(func() error { return nil }), nil
}

func (f *flaky) Close() error { return nil }

func (f *flaky) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.recovered {
		return errors.New("broker down")
	}
	return nil
}

func (f *flaky) recover() {
	f.mu.Lock()
	f.recovered = true
	f.mu.Unlock()
}

func TestResilientDegradesWithoutFailing(t *testing.T) {
	inner := &flaky{}
	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	r := NewResilient(inner, logger, 10*time.Millisecond, 50*time.Millisecond)
	defer r.Close()

	assert.False(t, r.Degraded())
	assert.NoError(t, r.Publish(context.Background(), "t", []byte("x")), "publish must not fail when the broker is down")
	assert.True(t, r.Degraded())

	// Further publishes are skipped while degraded, still without error.
	assert.NoError(t, r.Publish(context.Background(), "t", []byte("y")))
}

func TestResilientRecovers(t *testing.T) {
	inner := &flaky{}
	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	r := NewResilient(inner, logger, 5*time.Millisecond, 20*time.Millisecond)
	defer r.Close()

	require.NoError(t, r.Publish(context.Background(), "t", nil))
	require.True(t, r.Degraded())

	inner.recover()

	assert.Eventually(t, func() bool { return !r.Degraded() }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Publish(context.Background(), "t", nil))

	inner.mu.Lock()
	defer inner.mu.Unlock()
	assert.Equal(t, 1, inner.published)
}
