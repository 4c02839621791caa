// Package persist is the hub's durable-storage collaborator. Writes
// happen after delivery, off the broadcast path, and their failures are
// logged but never fatal: the hub itself persists nothing.
package persist

import (
	"context"
	"time"
)

// ChatMessage is a delivered league chat message bound for history.
type ChatMessage struct {
	ID        string
	LeagueID  string
	RoomID    string
	UserID    string
	Username  string
	Body      string
	Type      string
	CreatedAt time.Time
}

// DirectMessage is a delivered direct message bound for history. The
// conversation id is the sorted participant pair, so one key fetches a
// thread regardless of who sent which message.
type DirectMessage struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Body           string
	Type           string
	CreatedAt      time.Time
}

// NotificationRecord is a notification's terminal outcome for audit.
type NotificationRecord struct {
	ID         string
	UserID     string
	Category   string
	Payload    []byte
	Status     string
	Attempts   int
	EnqueuedAt time.Time
}

// Store is the durable write path.
type Store interface {
	SaveChatMessage(ctx context.Context, msg ChatMessage) error
	SaveDirectMessage(ctx context.Context, msg DirectMessage) error
	SaveNotification(ctx context.Context, rec NotificationRecord) error
	Close()
}

// Noop discards all writes. Used when persistence is disabled and in
// tests.
type Noop struct{}

func (Noop) SaveChatMessage(context.Context, ChatMessage) error         { return nil }
func (Noop) SaveDirectMessage(context.Context, DirectMessage) error     { return nil }
func (Noop) SaveNotification(context.Context, NotificationRecord) error { return nil }
func (Noop) Close()                                                     {}
