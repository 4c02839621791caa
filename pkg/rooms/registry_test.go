package rooms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralfield/realtime/pkg/domain"
	"github.com/astralfield/realtime/pkg/errors"
)

type fakeConn struct {
	id       string
	identity *domain.Identity

	mu       sync.Mutex
	received []*domain.Envelope
	fail     bool
}

func (c *fakeConn) ID() string                 { return c.id }
func (c *fakeConn) Identity() *domain.Identity { return c.identity }

func (c *fakeConn) Enqueue(env *domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return domain.ErrSendBufferFull
	}
	c.received = append(c.received, env)
	return nil
}

func (c *fakeConn) envelopes() []*domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Envelope(nil), c.received...)
}

func newFakeConn(id, userID string, leagueIDs ...string) *fakeConn {
	return &fakeConn{
		id: id,
		identity: &domain.Identity{
			UserID:    userID,
			LeagueIDs: leagueIDs,
		},
	}
}

func TestJoinAuthorized(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("c1", "u1", "42")

	require.NoError(t, reg.Join(conn, domain.LeagueRoom("42")))
	assert.Equal(t, 1, reg.MemberCount("league:42"))
	assert.Equal(t, []string{"league:42"}, reg.RoomsOf("c1"))
}

func TestJoinDenied(t *testing.T) {
	reg := NewRegistry()
	authorized := newFakeConn("c1", "u1", "42")
	intruder := newFakeConn("c2", "u2", "99")

	require.NoError(t, reg.Join(authorized, domain.LeagueRoom("42")))

	err := reg.Join(intruder, domain.LeagueRoom("42"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthorization, errors.TypeOf(err))
	assert.Equal(t, 1, reg.MemberCount("league:42"), "membership unchanged on denial")
}

func TestJoinMalformedRoom(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("c1", "u1", "42")

	err := reg.Join(conn, "bogus")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
}

func TestJoinRejectsConversationID(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("c1", "u1", "42")

	err := reg.Join(conn, domain.DMConversation("u1", "u2"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
	assert.Zero(t, reg.RoomCount())
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("c1", "u1", "42")

	require.NoError(t, reg.Join(conn, domain.LeagueRoom("42")))
	reg.Leave("c1", "league:42")

	assert.Equal(t, 0, reg.RoomCount())
	assert.Nil(t, reg.Members("league:42"))

	// Rejoining creates a fresh room with no residual state.
	require.NoError(t, reg.Join(conn, domain.LeagueRoom("42")))
	assert.Equal(t, 1, reg.MemberCount("league:42"))
}

func TestCleanupConnection(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("c1", "u1", "42", "43")
	other := newFakeConn("c2", "u2", "42")

	require.NoError(t, reg.Join(conn, domain.LeagueRoom("42")))
	require.NoError(t, reg.Join(conn, domain.LeagueRoom("43")))
	require.NoError(t, reg.Join(other, domain.LeagueRoom("42")))

	left := reg.CleanupConnection("c1")

	assert.Equal(t, 2, left)
	assert.Equal(t, 1, reg.MemberCount("league:42"))
	assert.Equal(t, 0, reg.MemberCount("league:43"))
	assert.Nil(t, reg.RoomsOf("c1"))
}

func TestBroadcastLocalOrder(t *testing.T) {
	reg := NewRegistry()
	a := newFakeConn("a", "u1", "42")
	b := newFakeConn("b", "u2", "42")

	require.NoError(t, reg.Join(a, domain.LeagueRoom("42")))
	require.NoError(t, reg.Join(b, domain.LeagueRoom("42")))

	for i := 0; i < 3; i++ {
		env := &domain.Envelope{
			ID:        string(rune('x' + i)),
			Kind:      domain.EventLeagueMessage,
			Room:      "league:42",
			Timestamp: time.Now(),
		}
		delivered := reg.BroadcastLocal("league:42", env)
		assert.Equal(t, 2, delivered)
	}

	for _, conn := range []*fakeConn{a, b} {
		got := conn.envelopes()
		require.Len(t, got, 3)
		assert.Equal(t, "x", got[0].ID)
		assert.Equal(t, "y", got[1].ID)
		assert.Equal(t, "z", got[2].ID)
	}
}

func TestBroadcastLocalCountsFailures(t *testing.T) {
	reg := NewRegistry()
	ok := newFakeConn("a", "u1", "42")
	full := newFakeConn("b", "u2", "42")
	full.fail = true

	require.NoError(t, reg.Join(ok, domain.LeagueRoom("42")))
	require.NoError(t, reg.Join(full, domain.LeagueRoom("42")))

	delivered := reg.BroadcastLocal("league:42", &domain.Envelope{Kind: domain.EventScoreUpdate})
	assert.Equal(t, 1, delivered)
}

func TestConcurrentBroadcastsSameRoom(t *testing.T) {
	reg := NewRegistry()
	a := newFakeConn("a", "u1", "42")
	b := newFakeConn("b", "u2", "42")

	require.NoError(t, reg.Join(a, domain.LeagueRoom("42")))
	require.NoError(t, reg.Join(b, domain.LeagueRoom("42")))

	stamp := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				delivered := reg.BroadcastLocal("league:42", &domain.Envelope{
					Kind:      domain.EventScoreUpdate,
					Timestamp: stamp,
				})
				if delivered != 2 {
					t.Errorf("delivered %d, want 2", delivered)
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, a.envelopes(), 160)
	assert.Len(t, b.envelopes(), 160)

	last, ok := reg.LastActivity("league:42")
	require.True(t, ok)
	assert.Equal(t, stamp.UnixNano(), last.UnixNano())
}

func TestConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := newFakeConn(string(rune('A'+n%26))+string(rune('0'+n%10)), "u", "42")
			if err := reg.Join(conn, domain.LeagueRoom("42")); err != nil {
				t.Error(err)
				return
			}
			reg.CleanupConnection(conn.ID())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.RoomCount())
}
