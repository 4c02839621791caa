package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerMultiDevice(t *testing.T) {
	tracker := NewTracker()

	tracker.Add("user-1", "conn-a")
	tracker.Add("user-1", "conn-b")
	tracker.Add("user-2", "conn-c")

	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, tracker.Lookup("user-1"))
	assert.True(t, tracker.Online("user-1"))
	assert.Equal(t, 2, tracker.UserCount())
}

func TestTrackerRemoveLastConnection(t *testing.T) {
	tracker := NewTracker()

	tracker.Add("user-1", "conn-a")
	tracker.Remove("user-1", "conn-a")

	assert.Nil(t, tracker.Lookup("user-1"))
	assert.False(t, tracker.Online("user-1"))
	assert.Equal(t, 0, tracker.UserCount())
}

func TestTrackerRemoveUnknown(t *testing.T) {
	tracker := NewTracker()

	tracker.Remove("nobody", "conn-x")

	assert.Equal(t, 0, tracker.UserCount())
}
