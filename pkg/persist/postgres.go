package persist

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astralfield/realtime/pkg/errors"
)

// Postgres persists delivered messages and notification outcomes to a
// pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies reachability.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePersistence, "DB_CONNECT_FAILED", "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypePersistence, "DB_UNREACHABLE", "database did not answer ping")
	}
	return &Postgres{pool: pool}, nil
}

// SaveChatMessage implements Store.
func (p *Postgres) SaveChatMessage(ctx context.Context, msg ChatMessage) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, league_id, room_id, user_id, username, body, message_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.LeagueID, msg.RoomID, msg.UserID, msg.Username, msg.Body, msg.Type, msg.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypePersistence, "CHAT_WRITE_FAILED", "failed to store chat message")
	}
	return nil
}

// SaveDirectMessage implements Store.
func (p *Postgres) SaveDirectMessage(ctx context.Context, msg DirectMessage) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO direct_messages (id, conversation_id, sender_id, recipient_id, body, message_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Body, msg.Type, msg.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypePersistence, "DM_WRITE_FAILED", "failed to store direct message")
	}
	return nil
}

// SaveNotification implements Store.
func (p *Postgres) SaveNotification(ctx context.Context, rec NotificationRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, category, payload, status, attempts, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET status = $5, attempts = $6`,
		rec.ID, rec.UserID, rec.Category, rec.Payload, rec.Status, rec.Attempts, rec.EnqueuedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypePersistence, "NOTIFICATION_WRITE_FAILED", "failed to store notification")
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
