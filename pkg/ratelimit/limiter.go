// Package ratelimit provides per-connection fixed-window admission
// control for inbound events. One record per connection; one connection's
// rate never affects another's.
package ratelimit

import (
	"sync"
	"time"
)

type record struct {
	windowStart time.Time
	count       int
}

// Limiter admits up to MaxEvents events per connection per window. Window
// reset is lazy: the first event after the boundary observes an expired
// record and starts a fresh count of 1.
type Limiter struct {
	window time.Duration
	max    int
	clock  func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

// NewLimiter creates a limiter with the given window and event cap.
func NewLimiter(window time.Duration, max int) *Limiter {
	return NewLimiterWithClock(window, max, time.Now)
}

// NewLimiterWithClock creates a limiter with an injected clock so tests
// can advance time without sleeping.
func NewLimiterWithClock(window time.Duration, max int, clock func() time.Time) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		clock:   clock,
		records: make(map[string]*record),
	}
}

// Allow reports whether the connection may submit another event and
// increments its count when it may. Denied events must not be forwarded.
func (l *Limiter) Allow(connID string) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[connID]
	if !ok || now.Sub(rec.windowStart) >= l.window {
		l.records[connID] = &record{windowStart: now, count: 1}
		return true
	}

	if rec.count >= l.max {
		return false
	}
	rec.count++
	return true
}

// Forget discards the record for a disconnected connection.
func (l *Limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, connID)
}
