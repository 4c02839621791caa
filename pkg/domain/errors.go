package domain

import "errors"

// Sentinel errors shared across hub components.
var (
	// ErrConnectionClosed is returned when writing to a closed connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConnectionNotFound is returned when a connection id is unknown.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrHubStopped is returned when the hub is shutting down.
	ErrHubStopped = errors.New("hub stopped")

	// ErrSendBufferFull is returned when a connection's outbound buffer
	// cannot accept another message.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrSlowConsumer is returned when a connection cannot keep up with
	// critical traffic and must be dropped.
	ErrSlowConsumer = errors.New("slow consumer")

	// ErrRoomNotFound is returned when a room id has no live members.
	ErrRoomNotFound = errors.New("room not found")
)
