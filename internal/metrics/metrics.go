package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total number of websocket connections established",
		},
	)

	ConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_current",
			Help: "Current number of active connections",
		},
	)

	AuthenticationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_authentication_attempts_total",
			Help: "Total number of handshake authentication attempts",
		},
		[]string{"result"},
	)

	RoomsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_rooms_current",
			Help: "Current number of live rooms",
		},
	)
)

// Message metrics
var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_received_total",
			Help: "Total number of inbound client events",
		},
		[]string{"kind"},
	)

	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_delivered_total",
			Help: "Total number of messages delivered to local connections",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_dropped_total",
			Help: "Total number of outbound messages dropped",
		},
		[]string{"reason"},
	)

	RateLimitDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_rate_limit_denials_total",
			Help: "Total number of events denied by admission control",
		},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)
)

// Cluster bus metrics
var (
	BusPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bus_publishes_total",
			Help: "Total number of envelopes published to the cluster bus",
		},
		[]string{"status"},
	)

	BusReceives = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bus_receives_total",
			Help: "Total number of envelopes received from the cluster bus",
		},
	)

	BusDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_bus_degraded",
			Help: "Whether the hub is running in degraded single-node mode",
		},
	)
)

// Notification metrics
var (
	NotificationsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_notifications_enqueued_total",
			Help: "Total number of notifications enqueued",
		},
	)

	NotificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_notification_outcomes_total",
			Help: "Total number of notifications reaching a terminal status",
		},
		[]string{"status"},
	)
)

// Persistence metrics
var (
	PersistWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_persist_writes_total",
			Help: "Total number of durable-storage writes",
		},
		[]string{"status"},
	)
)
