package bus

import (
	"context"
	"io"

	"github.com/redis/go-redis/v9"
)

// Redis adapts Redis pub/sub as the cluster bus. The client reconnects on
// its own and re-establishes channel subscriptions, so a broker outage
// surfaces only as publish errors.
type Redis struct {
	client *redis.Client
}

// RedisOptions configures the Redis adapter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis creates a Redis-backed bus.
func NewRedis(opts RedisOptions) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// Publish implements PubSub.
func (b *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

// Subscribe implements PubSub.
func (b *Redis) Subscribe(ctx context.Context, topic string, handler Handler) (io.Closer, error) {
	sub := b.client.Subscribe(ctx, topic)

	// Force the initial subscription so failures surface here rather
	// than silently on the receive loop.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	return sub, nil
}

// Ping probes broker reachability.
func (b *Redis) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close implements PubSub.
func (b *Redis) Close() error {
	return b.client.Close()
}
