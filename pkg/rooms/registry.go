// Package rooms tracks which connections belong to which broadcast rooms.
// Mutations lock only the shard owning the room, so unrelated rooms never
// contend, and a reverse index keeps connection teardown proportional to
// the connection's membership count.
package rooms

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/astralfield/realtime/pkg/domain"
	"github.com/astralfield/realtime/pkg/errors"
)

const shardCount = 32

// Conn is the registry's view of a connection: an identity for join
// authorization and an outbound path for local fanout.
type Conn interface {
	ID() string
	Identity() *domain.Identity
	Enqueue(env *domain.Envelope) error
}

type room struct {
	id        string
	kind      domain.RoomKind
	members   map[string]Conn
	createdAt time.Time

	// lastActivity holds unix nanos. Atomic so broadcasts can stamp it
	// while holding only the shard's read lock.
	lastActivity atomic.Int64
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// Registry owns all room state. Rooms are created lazily on first join
// and deleted the moment their member set becomes empty.
type Registry struct {
	shards [shardCount]*shard

	connMu    sync.Mutex
	connRooms map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		connRooms: make(map[string]map[string]struct{}),
	}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[string]*room)}
	}
	return r
}

func (r *Registry) shardFor(roomID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return r.shards[h.Sum32()%shardCount]
}

// Join adds a connection to a room after checking the connection's
// identity against the room's authorization predicate. A denied join
// leaves membership untouched.
func (r *Registry) Join(c Conn, roomID string) error {
	kind, _, err := domain.ParseRoom(roomID)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "INVALID_ROOM", "malformed room id")
	}

	if err := authorize(c.Identity(), kind, roomID); err != nil {
		return err
	}

	now := time.Now()
	s := r.shardFor(roomID)

	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = &room{
			id:        roomID,
			kind:      kind,
			members:   make(map[string]Conn),
			createdAt: now,
		}
		s.rooms[roomID] = rm
	}
	rm.members[c.ID()] = c
	rm.lastActivity.Store(now.UnixNano())
	s.mu.Unlock()

	r.connMu.Lock()
	memberships, ok := r.connRooms[c.ID()]
	if !ok {
		memberships = make(map[string]struct{})
		r.connRooms[c.ID()] = memberships
	}
	memberships[roomID] = struct{}{}
	r.connMu.Unlock()

	return nil
}

// Leave removes a connection from a room. The room is deleted when its
// member set becomes empty.
func (r *Registry) Leave(connID, roomID string) {
	s := r.shardFor(roomID)

	s.mu.Lock()
	if rm, ok := s.rooms[roomID]; ok {
		delete(rm.members, connID)
		if len(rm.members) == 0 {
			delete(s.rooms, roomID)
		}
	}
	s.mu.Unlock()

	r.connMu.Lock()
	if memberships, ok := r.connRooms[connID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(r.connRooms, connID)
		}
	}
	r.connMu.Unlock()
}

// CleanupConnection removes a connection from every room it belongs to,
// in O(memberships) via the reverse index. It returns the number of rooms
// left.
func (r *Registry) CleanupConnection(connID string) int {
	r.connMu.Lock()
	memberships := r.connRooms[connID]
	delete(r.connRooms, connID)
	r.connMu.Unlock()

	for roomID := range memberships {
		s := r.shardFor(roomID)
		s.mu.Lock()
		if rm, ok := s.rooms[roomID]; ok {
			delete(rm.members, connID)
			if len(rm.members) == 0 {
				delete(s.rooms, roomID)
			}
		}
		s.mu.Unlock()
	}

	return len(memberships)
}

// BroadcastLocal hands the envelope to the outbound path of every member
// of the room on this node. It returns the number of successful
// deliveries.
func (r *Registry) BroadcastLocal(roomID string, env *domain.Envelope) int {
	s := r.shardFor(roomID)

	s.mu.RLock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.RUnlock()
		return 0
	}
	members := make([]Conn, 0, len(rm.members))
	for _, c := range rm.members {
		members = append(members, c)
	}
	rm.lastActivity.Store(env.Timestamp.UnixNano())
	s.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if err := c.Enqueue(env); err == nil {
			delivered++
		}
	}
	return delivered
}

// LastActivity returns the time of the room's most recent join or
// broadcast, false when the room does not exist.
func (r *Registry) LastActivity(roomID string) (time.Time, bool) {
	s := r.shardFor(roomID)
	s.mu.RLock()
	rm, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, rm.lastActivity.Load()), true
}

// Members returns the connection ids currently joined to a room.
func (r *Registry) Members(roomID string) []string {
	s := r.shardFor(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(rm.members))
	for id := range rm.members {
		out = append(out, id)
	}
	return out
}

// MemberCount returns the size of a room, zero when it does not exist.
func (r *Registry) MemberCount(roomID string) int {
	s := r.shardFor(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return 0
	}
	return len(rm.members)
}

// RoomCount returns the number of live rooms across all shards.
func (r *Registry) RoomCount() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.rooms)
		s.mu.RUnlock()
	}
	return total
}

// RoomsOf returns the room ids a connection currently belongs to.
func (r *Registry) RoomsOf(connID string) []string {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	memberships, ok := r.connRooms[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(memberships))
	for roomID := range memberships {
		out = append(out, roomID)
	}
	return out
}

// authorize is the per-kind room authorization predicate. League rooms
// require the league in the identity's authorized set; matchup, draft,
// and trade ids are league-scoped upstream, so the identity must hold
// at least one league to enter them.
func authorize(identity *domain.Identity, kind domain.RoomKind, roomID string) error {
	denied := func() error {
		return errors.New(errors.ErrorTypeAuthorization, "ROOM_FORBIDDEN", "not authorized for this room").
			WithDetails(roomID)
	}

	_, rest, _ := domain.ParseRoom(roomID)
	if kind == domain.RoomKindLeague {
		if !identity.CanAccessLeague(rest) {
			return denied()
		}
		return nil
	}
	if len(identity.LeagueIDs) == 0 {
		return denied()
	}
	return nil
}
