package bus

import (
	"context"
	"io"

	"github.com/nats-io/nats.go"
)

// NATS adapts a NATS connection as the cluster bus.
type NATS struct {
	conn *nats.Conn
}

// NewNATS connects to a NATS server. The connection retries forever in
// the background once established.
func NewNATS(url string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: conn}, nil
}

// Publish implements PubSub.
func (b *NATS) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return b.conn.Publish(topic, payload)
}

// Subscribe implements PubSub.
func (b *NATS) Subscribe(ctx context.Context, topic string, handler Handler) (io.Closer, error) {
	sub, err := b.conn.Subscribe(topic, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	return closerFunc(func() error {
		return sub.Unsubscribe()
	}), nil
}

// Ping probes broker reachability.
func (b *NATS) Ping(ctx context.Context) error {
	return b.conn.FlushWithContext(ctx)
}

// Close implements PubSub.
func (b *NATS) Close() error {
	b.conn.Close()
	return nil
}
