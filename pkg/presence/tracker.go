// Package presence maintains the live mapping from a user identity to its
// open connections. A user may hold several simultaneous connections
// (multi-device); point-to-point delivery fans out to all of them.
package presence

import "sync"

// Tracker maps user ids to their live connection ids.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		users: make(map[string]map[string]struct{}),
	}
}

// Add registers a connection for a user.
func (t *Tracker) Add(userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[userID]
	if !ok {
		conns = make(map[string]struct{})
		t.users[userID] = conns
	}
	conns[connID] = struct{}{}
}

// Remove drops a connection for a user. The user entry disappears with
// its last connection.
func (t *Tracker) Remove(userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(t.users, userID)
	}
}

// Lookup returns the connection ids currently held by a user.
func (t *Tracker) Lookup(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns, ok := t.users[userID]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// Online reports whether the user holds at least one live connection.
func (t *Tracker) Online(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users[userID]) > 0
}

// UserCount returns the number of users with at least one connection.
func (t *Tracker) UserCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}
