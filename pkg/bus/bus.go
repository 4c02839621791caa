// Package bus bridges the hub to a shared pub/sub broker so broadcasts
// reach connections held by other server processes. Adapters are
// stateless: no room or connection state lives here.
package bus

import (
	"context"
	"io"
)

// Handler consumes a raw payload received on a subscribed topic.
type Handler func(payload []byte)

// PubSub is the thin bridge to a shared broker.
type PubSub interface {
	// Publish sends a payload to every subscriber of the topic,
	// including subscribers on other nodes.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. The returned closer
	// cancels the subscription.
	Subscribe(ctx context.Context, topic string, handler Handler) (io.Closer, error)

	// Close releases the broker connection.
	Close() error
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
