package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDMConversationSortsParticipants(t *testing.T) {
	assert.Equal(t, DMConversation("alice", "bob"), DMConversation("bob", "alice"))
	assert.Equal(t, "dm:alice:bob", DMConversation("bob", "alice"))
}

func TestParseRoom(t *testing.T) {
	kind, rest, err := ParseRoom("league:l42")
	require.NoError(t, err)
	assert.Equal(t, RoomKindLeague, kind)
	assert.Equal(t, "l42", rest)

	_, _, err = ParseRoom("noprefix")
	assert.Error(t, err)

	_, _, err = ParseRoom("league:")
	assert.Error(t, err)

	_, _, err = ParseRoom("galaxy:g1")
	assert.Error(t, err)

	// Conversation ids are not room ids.
	_, _, err = ParseRoom(DMConversation("alice", "bob"))
	assert.Error(t, err)
}
