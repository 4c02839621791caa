// Package hub is the core of the event distribution service: it owns the
// connection gateway, the dispatch table for inbound events, the
// local-first fanout, and the cluster bus subscription.
package hub

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/astralfield/realtime/internal/config"
	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/internal/metrics"
	"github.com/astralfield/realtime/pkg/auth"
	"github.com/astralfield/realtime/pkg/bus"
	"github.com/astralfield/realtime/pkg/domain"
	"github.com/astralfield/realtime/pkg/errors"
	"github.com/astralfield/realtime/pkg/notify"
	"github.com/astralfield/realtime/pkg/persist"
	"github.com/astralfield/realtime/pkg/presence"
	"github.com/astralfield/realtime/pkg/ratelimit"
	"github.com/astralfield/realtime/pkg/rooms"
)

// degradable is satisfied by bus adapters that report single-node mode.
type degradable interface {
	Degraded() bool
}

// Options are the hub's injected collaborators.
type Options struct {
	Config      config.HubConfig
	TopicPrefix string
	Verifier    auth.Verifier
	Bus         bus.PubSub
	Logger      *logging.Logger
	Window      *metrics.Window
	Limiter     *ratelimit.Limiter

	// Archive receives delivered chat and direct messages for durable
	// history. Nil disables persistence.
	Archive *persist.AsyncWriter

	// Now is the hub's clock. Defaults to time.Now.
	Now func() time.Time
}

// Hub routes events between local connections and the cluster bus.
type Hub struct {
	cfg         config.HubConfig
	topicPrefix string
	nodeID      string

	verifier auth.Verifier
	bus      bus.PubSub
	logger   *logging.Logger
	window   *metrics.Window
	limiter  *ratelimit.Limiter
	archive  *persist.AsyncWriter
	now      func() time.Time

	registry *rooms.Registry
	presence *presence.Tracker

	mu    sync.RWMutex
	conns map[string]*Connection

	notifications *notify.Queue

	handlers map[domain.EventKind]handlerFunc
	errs     *errors.DefaultHandler

	stopped atomic.Bool
	sub     io.Closer
}

// New builds a hub. Run must be called before accepting connections.
func New(opts Options) *Hub {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	nodeID := opts.Config.NodeID
	if nodeID == "" {
		nodeID = xid.New().String()
	}
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = "realtime"
	}

	h := &Hub{
		cfg:         opts.Config,
		topicPrefix: prefix,
		nodeID:      nodeID,
		verifier:    opts.Verifier,
		bus:         opts.Bus,
		logger:      opts.Logger.WithFields(map[string]any{"node_id": nodeID}),
		window:      opts.Window,
		limiter:     opts.Limiter,
		archive:     opts.Archive,
		now:         opts.Now,
		registry:    rooms.NewRegistry(),
		presence:    presence.NewTracker(),
		conns:       make(map[string]*Connection),
	}
	h.handlers = h.buildHandlers()
	h.errs = errors.NewDefaultHandler(h.logger.Logger)
	return h
}

// NodeID returns this hub instance's cluster identity.
func (h *Hub) NodeID() string { return h.nodeID }

// AttachNotifications binds the notification queue used for offline
// direct-message delivery. Call before Run.
func (h *Hub) AttachNotifications(q *notify.Queue) { h.notifications = q }

func (h *Hub) topic() string { return h.topicPrefix + ".events" }

// Run subscribes the hub to the cluster bus.
func (h *Hub) Run(ctx context.Context) error {
	sub, err := h.bus.Subscribe(ctx, h.topic(), h.onBusMessage)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeBus, "BUS_SUBSCRIBE_FAILED", "could not subscribe to cluster topic")
	}
	h.sub = sub
	h.logger.Info("hub running", "topic", h.topic())
	return nil
}

// Stop broadcasts server_shutdown to every local connection, then tears
// all of them down. Idempotent.
func (h *Hub) Stop(ctx context.Context) {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}

	payload, _ := json.Marshal(domain.ServerShutdownPayload{Message: "server shutting down"})
	env := h.newEnvelope(domain.EventServerShutdown, "", "", payload)
	h.broadcastAllLocal(env)

	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.Disconnect(c, "server shutdown")
	}

	if h.sub != nil {
		h.sub.Close()
	}
	h.logger.Info("hub stopped", "connections_closed", len(conns))
}

// Accept verifies the handshake token and registers the connection.
// The connection is Active when Accept returns; the caller starts the
// transport pumps.
func (h *Hub) Accept(ctx context.Context, token string) (*Connection, error) {
	if h.stopped.Load() {
		return nil, errors.Wrap(domain.ErrHubStopped, errors.ErrorTypeTransport, "HUB_STOPPED", "hub is shutting down")
	}

	// Cheap early check so a full hub never pays for token verification.
	// The limit is enforced again under the write lock at insert.
	h.mu.RLock()
	count := len(h.conns)
	h.mu.RUnlock()
	if count >= h.cfg.MaxConnections {
		metrics.AuthenticationAttempts.WithLabelValues("rejected").Inc()
		return nil, errors.New(errors.ErrorTypeTransport, "MAX_CONNECTIONS", "connection limit reached")
	}

	if token == "" {
		metrics.AuthenticationAttempts.WithLabelValues("rejected").Inc()
		return nil, auth.ErrMissingToken()
	}

	verifyCtx, cancel := context.WithTimeout(ctx, h.cfg.HandshakeTimeout)
	defer cancel()

	identity, err := h.verifier.Verify(verifyCtx, token)
	if err != nil {
		metrics.AuthenticationAttempts.WithLabelValues("rejected").Inc()
		if verifyCtx.Err() != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "AUTH_TIMEOUT", "token verification timed out")
		}
		return nil, auth.ErrInvalidToken(err)
	}

	c := newConnection(xid.New().String(), identity, h.cfg.SendBufferSize, h.cfg.CriticalSendWait, func(c *Connection) {
		h.logger.Warn("slow consumer, disconnecting", "conn_id", c.ID(), "user_id", c.identity.UserID)
		h.Disconnect(c, "slow consumer")
	})
	c.setState(StateAuthenticated)

	h.mu.Lock()
	if len(h.conns) >= h.cfg.MaxConnections {
		h.mu.Unlock()
		metrics.AuthenticationAttempts.WithLabelValues("rejected").Inc()
		return nil, errors.New(errors.ErrorTypeTransport, "MAX_CONNECTIONS", "connection limit reached")
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	h.presence.Add(identity.UserID, c.id)

	// Every authorized league room is joined eagerly so league-scoped
	// broadcasts reach the client without an explicit join.
	for _, leagueID := range identity.LeagueIDs {
		if err := h.registry.Join(c, domain.LeagueRoom(leagueID)); err != nil {
			h.logger.Warn("auto-join failed", "conn_id", c.id, "league_id", leagueID, "error", err)
		}
	}

	c.setState(StateActive)

	metrics.AuthenticationAttempts.WithLabelValues("accepted").Inc()
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsCurrent.Inc()
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	h.window.AddConnection()

	h.logger.Info("connection accepted",
		"conn_id", c.id,
		"user_id", identity.UserID,
		"leagues", len(identity.LeagueIDs),
	)
	return c, nil
}

// Disconnect tears down a connection: rooms, presence, rate limiter
// record, and the outbound channel. Idempotent.
func (h *Hub) Disconnect(c *Connection, reason string) {
	if !c.state.CompareAndSwap(int32(StateActive), int32(StateDisconnecting)) {
		if !c.state.CompareAndSwap(int32(StateAuthenticated), int32(StateDisconnecting)) {
			return
		}
	}

	left := h.registry.CleanupConnection(c.id)
	h.presence.Remove(c.identity.UserID, c.id)
	h.limiter.Forget(c.id)

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	close(c.closed)
	c.setState(StateClosed)

	metrics.ConnectionsCurrent.Dec()
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))

	h.logger.Info("connection closed",
		"conn_id", c.id,
		"user_id", c.identity.UserID,
		"rooms_left", left,
		"reason", reason,
	)
}

// newEnvelope stamps an envelope with this node's identity and clock.
func (h *Hub) newEnvelope(kind domain.EventKind, room, userID string, payload json.RawMessage) *domain.Envelope {
	return &domain.Envelope{
		ID:         xid.New().String(),
		Kind:       kind,
		Room:       room,
		UserID:     userID,
		OriginNode: h.nodeID,
		Payload:    payload,
		Timestamp:  h.now(),
	}
}

// Publish fans an envelope out to local members first, in caller order,
// then mirrors it onto the cluster bus. Envelopes that arrived from the
// bus are never re-published.
func (h *Hub) Publish(ctx context.Context, env *domain.Envelope) int {
	delivered := h.fanoutLocal(env)
	h.mirror(ctx, env)
	return delivered
}

// PublishToUser delivers an envelope to every live connection of a user
// on this node and mirrors it for the user's sessions on other nodes.
func (h *Hub) PublishToUser(ctx context.Context, userID string, kind domain.EventKind, payload json.RawMessage) int {
	env := h.newEnvelope(kind, "", userID, payload)
	return h.Publish(ctx, env)
}

// PublishToRoom builds an envelope for a room broadcast and publishes it.
func (h *Hub) PublishToRoom(ctx context.Context, roomID string, kind domain.EventKind, payload json.RawMessage) int {
	env := h.newEnvelope(kind, roomID, "", payload)
	return h.Publish(ctx, env)
}

func (h *Hub) fanoutLocal(env *domain.Envelope) int {
	var delivered int
	switch {
	case env.Room != "":
		delivered = h.registry.BroadcastLocal(env.Room, env)
	case env.UserID != "":
		delivered = h.deliverToUserLocal(env)
	default:
		delivered = h.broadcastAllLocal(env)
	}

	if delivered > 0 {
		metrics.MessagesDelivered.Add(float64(delivered))
		h.window.AddMessage()
	}
	return delivered
}

func (h *Hub) deliverToUserLocal(env *domain.Envelope) int {
	delivered := 0
	for _, connID := range h.presence.Lookup(env.UserID) {
		h.mu.RLock()
		c, ok := h.conns[connID]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if err := c.Enqueue(env); err == nil {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) broadcastAllLocal(env *domain.Envelope) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Enqueue(env); err == nil {
			delivered++
		}
	}
	return delivered
}

// mirror publishes a locally originated envelope onto the cluster bus.
func (h *Hub) mirror(ctx context.Context, env *domain.Envelope) {
	if env.OriginNode != h.nodeID {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("envelope marshal failed", "error", err)
		return
	}
	if err := h.bus.Publish(ctx, h.topic(), raw); err != nil {
		h.logger.Warn("bus publish failed", "error", err)
	}
}

// onBusMessage handles envelopes received from other nodes. They fan
// out locally only; re-publishing would storm the bus.
func (h *Hub) onBusMessage(payload []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Warn("malformed bus envelope", "error", err)
		return
	}
	if env.OriginNode == h.nodeID {
		return
	}
	metrics.BusReceives.Inc()
	h.fanoutLocal(&env)
}

// sendError delivers a structured error frame to a single connection.
func (h *Hub) sendError(c *Connection, code, message string) {
	payload, _ := json.Marshal(domain.ErrorPayload{Code: code, Message: message})
	env := h.newEnvelope(domain.EventError, "", "", payload)
	if err := c.Enqueue(env); err != nil {
		h.logger.Debug("error frame dropped", "conn_id", c.id, "code", code)
	}
}

// Health is the snapshot served on the health surface.
type Health struct {
	Status      string    `json:"status"`
	NodeID      string    `json:"node_id"`
	Connections int       `json:"connections"`
	Users       int       `json:"users"`
	Rooms       int       `json:"rooms"`
	Messages    int64     `json:"messages"`
	Errors      int64     `json:"errors"`
	WindowSince time.Time `json:"window_since"`
	BusDegraded bool      `json:"bus_degraded"`
}

// Health reports current hub state for /healthz.
func (h *Hub) Health() Health {
	h.mu.RLock()
	conns := len(h.conns)
	h.mu.RUnlock()

	stats := h.window.Snapshot()

	degraded := false
	if d, ok := h.bus.(degradable); ok {
		degraded = d.Degraded()
	}

	status := "ok"
	if degraded {
		status = "degraded"
	}

	return Health{
		Status:      status,
		NodeID:      h.nodeID,
		Connections: conns,
		Users:       h.presence.UserCount(),
		Rooms:       h.registry.RoomCount(),
		Messages:    stats.Messages,
		Errors:      stats.Errors,
		WindowSince: stats.Since,
		BusDegraded: degraded,
	}
}

// Connections returns the number of live local connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// DeliverNotification is the notification queue's delivery path. It
// fails when the user has no live connection on this node so the queue
// retries until the user reconnects.
func (h *Hub) DeliverNotification(ctx context.Context, n notify.Notification) error {
	if !h.presence.Online(n.UserID) {
		return errors.New(errors.ErrorTypeTransport, "USER_OFFLINE", "user has no live connection").
			WithDetails(n.UserID)
	}

	payload, err := json.Marshal(domain.NotificationPayload{
		NotificationID: n.ID,
		Category:       n.Category,
		Data:           n.Payload,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "NOTIFICATION_ENCODE_FAILED", "could not encode notification")
	}

	if h.PublishToUser(ctx, n.UserID, domain.EventNotification, payload) == 0 {
		return errors.New(errors.ErrorTypeTransport, "DELIVERY_FAILED", "no connection accepted the notification")
	}
	return nil
}
