package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/astralfield/realtime/internal/metrics"
	"github.com/astralfield/realtime/pkg/domain"
)

// State is a connection's position in its lifecycle. Transitions only
// move forward; Rejected and Closed are terminal.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateDisconnecting
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Connection is one authenticated client session. The transport layer
// drives its read side through Hub.Dispatch and drains Outbound on its
// write side; the hub and registry feed it through Enqueue.
type Connection struct {
	id       string
	identity *domain.Identity

	send   chan *domain.Envelope
	closed chan struct{}

	state        atomic.Int32
	criticalWait time.Duration

	// slow is invoked at most once when a critical send times out.
	slow     func(*Connection)
	slowOnce sync.Once
}

func newConnection(id string, identity *domain.Identity, bufferSize int, criticalWait time.Duration, slow func(*Connection)) *Connection {
	c := &Connection{
		id:           id,
		identity:     identity,
		send:         make(chan *domain.Envelope, bufferSize),
		closed:       make(chan struct{}),
		criticalWait: criticalWait,
		slow:         slow,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// Identity returns the verified identity bound at handshake.
func (c *Connection) Identity() *domain.Identity { return c.identity }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) { c.state.Store(int32(s)) }

// Outbound is drained by the transport's write pump.
func (c *Connection) Outbound() <-chan *domain.Envelope { return c.send }

// Done is closed when the connection has been torn down.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Enqueue hands an envelope to the connection's outbound buffer.
// Non-critical kinds are dropped when the buffer is full. Critical kinds
// block up to criticalWait; a timeout marks the connection a slow
// consumer and schedules its disconnect rather than dropping the event
// silently.
func (c *Connection) Enqueue(env *domain.Envelope) error {
	if c.State() >= StateDisconnecting {
		return domain.ErrConnectionClosed
	}

	if env.Kind.Critical() {
		timer := time.NewTimer(c.criticalWait)
		defer timer.Stop()
		select {
		case c.send <- env:
			return nil
		case <-c.closed:
			return domain.ErrConnectionClosed
		case <-timer.C:
			metrics.MessagesDropped.WithLabelValues("slow_consumer").Inc()
			if c.slow != nil {
				c.slowOnce.Do(func() { go c.slow(c) })
			}
			return domain.ErrSlowConsumer
		}
	}

	select {
	case c.send <- env:
		return nil
	case <-c.closed:
		return domain.ErrConnectionClosed
	default:
		metrics.MessagesDropped.WithLabelValues("buffer_full").Inc()
		return domain.ErrSendBufferFull
	}
}
