package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralfield/realtime/internal/logging"
)

type recordingStore struct {
	mu            sync.Mutex
	chats         []ChatMessage
	dms           []DirectMessage
	notifications []NotificationRecord
	fail          bool
}

func (s *recordingStore) SaveChatMessage(_ context.Context, msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("write failed")
	}
	s.chats = append(s.chats, msg)
	return nil
}

func (s *recordingStore) SaveDirectMessage(_ context.Context, msg DirectMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("write failed")
	}
	s.dms = append(s.dms, msg)
	return nil
}

func (s *recordingStore) SaveNotification(_ context.Context, rec NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("write failed")
	}
	s.notifications = append(s.notifications, rec)
	return nil
}

func (s *recordingStore) Close() {}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func TestAsyncWriterDeliversWrites(t *testing.T) {
	store := &recordingStore{}
	w := NewAsyncWriter(store, testLogger(), 16)

	w.SaveChatMessage(ChatMessage{ID: "m1", LeagueID: "l1", Body: "hello"})
	w.SaveDirectMessage(DirectMessage{ID: "d1", SenderID: "u1", RecipientID: "u2"})
	w.SaveNotification(NotificationRecord{ID: "n1", UserID: "u2", Status: "delivered"})

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.chats) == 1 && len(store.dms) == 1 && len(store.notifications) == 1
	}, time.Second, 5*time.Millisecond)

	w.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "m1", store.chats[0].ID)
	assert.Equal(t, "d1", store.dms[0].ID)
	assert.Equal(t, "n1", store.notifications[0].ID)
}

func TestAsyncWriterDrainsOnStop(t *testing.T) {
	store := &recordingStore{}
	w := NewAsyncWriter(store, testLogger(), 64)

	for i := 0; i < 20; i++ {
		w.SaveChatMessage(ChatMessage{ID: "m", Body: "queued"})
	}
	w.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.chats, 20)
}

func TestAsyncWriterSurvivesStoreFailure(t *testing.T) {
	store := &recordingStore{fail: true}
	w := NewAsyncWriter(store, testLogger(), 16)

	w.SaveChatMessage(ChatMessage{ID: "m1"})
	w.Stop()

	// A failing store must not wedge the worker or panic.
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.chats)
}
