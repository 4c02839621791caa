package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMessage(t *testing.T) {
	got, err := SanitizeMessage("  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", got)

	got, err = SanitizeMessage("<script>alert(1)</script>nice pick")
	require.NoError(t, err)
	assert.Equal(t, "alert(1)nice pick", got)

	_, err = SanitizeMessage("   ")
	assert.Error(t, err)

	_, err = SanitizeMessage("<b></b>")
	assert.Error(t, err)

	_, err = SanitizeMessage(strings.Repeat("x", MaxChatMessageLength+1))
	assert.Error(t, err)

	got, err = SanitizeMessage(strings.Repeat("x", MaxChatMessageLength))
	require.NoError(t, err)
	assert.Len(t, got, MaxChatMessageLength)
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	var p JoinLeaguePayload
	err := DecodeStrict([]byte(`{"league_id":"l1","bogus":1}`), &p)
	assert.Error(t, err)
}

func TestDecodeStrictRejectsTrailingData(t *testing.T) {
	var p JoinLeaguePayload
	err := DecodeStrict([]byte(`{"league_id":"l1"}{"league_id":"l2"}`), &p)
	assert.Error(t, err)
}

func TestSendMessagePayloadValidate(t *testing.T) {
	p := SendMessagePayload{LeagueID: "l1", Message: "hi", Type: "chat"}
	assert.NoError(t, p.Validate())

	p.Type = "gif"
	assert.Error(t, p.Validate())

	p = SendMessagePayload{Message: "hi", Type: "chat"}
	assert.Error(t, p.Validate())
}

func TestDraftPickPayloadValidate(t *testing.T) {
	p := DraftPickPayload{DraftID: "d1", PlayerID: "p1", PickNumber: 3}
	assert.NoError(t, p.Validate())

	p.PickNumber = 0
	assert.Error(t, p.Validate())
}

func TestEventKindSets(t *testing.T) {
	assert.True(t, EventSendMessage.IsInbound())
	assert.False(t, EventLeagueMessage.IsInbound())
	assert.False(t, EventKind("made_up").IsInbound())

	assert.True(t, EventDraftUpdate.Critical())
	assert.True(t, EventServerShutdown.Critical())
	assert.False(t, EventScoreUpdate.Critical())
}
