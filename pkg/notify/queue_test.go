package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralfield/realtime/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func newTestQueue(sender Sender, clock *fakeClock) (*Queue, *[]Notification) {
	var recorded []Notification
	var mu sync.Mutex
	record := func(n Notification) {
		mu.Lock()
		recorded = append(recorded, n)
		mu.Unlock()
	}
	q := NewQueue(sender, record, testLogger(), Options{
		MaxAttempts: 5,
		Backoff:     []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, time.Minute},
		Retention:   time.Hour,
		Now:         clock.Now,
	})
	return q, &recorded
}

func TestQueueDeliversOnFirstAttempt(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var sent []Notification
	sender := func(_ context.Context, n Notification) error {
		sent = append(sent, n)
		return nil
	}
	q, recorded := newTestQueue(sender, clock)

	id, err := q.Enqueue("user-1", "trade", []byte(`{"trade_id":"t1"}`))
	require.NoError(t, err)

	q.Tick(context.Background())

	require.Len(t, sent, 1)
	assert.Equal(t, "user-1", sent[0].UserID)

	n, ok := q.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, n.Status)
	assert.Equal(t, 1, n.Attempts)
	require.Len(t, *recorded, 1)
	assert.Equal(t, StatusDelivered, (*recorded)[0].Status)
}

func TestQueueRetriesOnBackoffSchedule(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	attempts := 0
	sender := func(context.Context, Notification) error {
		attempts++
		if attempts < 3 {
			return errors.New("user offline")
		}
		return nil
	}
	q, _ := newTestQueue(sender, clock)

	id, err := q.Enqueue("user-1", "waiver", nil)
	require.NoError(t, err)

	// First attempt fails; next is due 1s later.
	q.Tick(context.Background())
	assert.Equal(t, 1, attempts)

	// Not yet due.
	clock.Advance(500 * time.Millisecond)
	q.Tick(context.Background())
	assert.Equal(t, 1, attempts)

	// Second attempt fails; next is due 5s later.
	clock.Advance(500 * time.Millisecond)
	q.Tick(context.Background())
	assert.Equal(t, 2, attempts)

	clock.Advance(5 * time.Second)
	q.Tick(context.Background())
	assert.Equal(t, 3, attempts)

	n, ok := q.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, n.Status)
}

func TestQueueFailsAfterMaxAttempts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	attempts := 0
	sender := func(context.Context, Notification) error {
		attempts++
		return errors.New("user offline")
	}
	q, recorded := newTestQueue(sender, clock)

	id, err := q.Enqueue("user-1", "injury", nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		q.Tick(context.Background())
		clock.Advance(2 * time.Minute)
	}

	assert.Equal(t, 5, attempts, "no attempts past the budget")

	n, ok := q.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, 5, n.Attempts)
	require.Len(t, *recorded, 1)
	assert.Equal(t, StatusFailed, (*recorded)[0].Status)
}

func TestQueueExpiresResolvedEntries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sender := func(context.Context, Notification) error { return nil }
	q, _ := newTestQueue(sender, clock)

	id, err := q.Enqueue("user-1", "news", nil)
	require.NoError(t, err)

	q.Tick(context.Background())
	_, ok := q.Lookup(id)
	require.True(t, ok)

	clock.Advance(time.Hour + time.Minute)
	q.Tick(context.Background())

	_, ok = q.Lookup(id)
	assert.False(t, ok, "delivered entry past retention must be swept")
}

func TestQueueRejectsWhenFull(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sender := func(context.Context, Notification) error { return nil }
	var recorded []Notification
	q := NewQueue(sender, func(n Notification) { recorded = append(recorded, n) }, testLogger(), Options{
		BufferSize: 2,
		Now:        clock.Now,
	})

	_, err := q.Enqueue("u1", "c", nil)
	require.NoError(t, err)
	_, err = q.Enqueue("u2", "c", nil)
	require.NoError(t, err)

	_, err = q.Enqueue("u3", "c", nil)
	assert.Error(t, err)
}

func TestQueueStartStop(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	delivered := make(chan struct{}, 1)
	sender := func(context.Context, Notification) error {
		select {
		case delivered <- struct{}{}:
		default:
		}
		return nil
	}
	var recorded []Notification
	var mu sync.Mutex
	q := NewQueue(sender, func(n Notification) {
		mu.Lock()
		recorded = append(recorded, n)
		mu.Unlock()
	}, testLogger(), Options{
		Interval: 5 * time.Millisecond,
		Now:      clock.Now,
	})

	_, err := q.Enqueue("u1", "c", nil)
	require.NoError(t, err)

	q.Start(context.Background())

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("delivery loop never ran")
	}

	q.Stop()
	assert.Zero(t, q.Pending())
}
