package domain

import (
	"fmt"
	"strings"
)

// RoomKind classifies a room by the domain object it broadcasts for.
type RoomKind string

const (
	RoomKindLeague  RoomKind = "league"
	RoomKindMatchup RoomKind = "matchup"
	RoomKindDraft   RoomKind = "draft"
	RoomKindTrade   RoomKind = "trade"
)

// Room id constructors. Room ids are namespaced strings so the bus topic
// and the registry key can be derived from the same value.

func LeagueRoom(leagueID string) string  { return "league:" + leagueID }
func MatchupRoom(matchupID string) string { return "matchup:" + matchupID }
func DraftRoom(draftID string) string    { return "draft:" + draftID }
func TradeRoom(tradeID string) string    { return "trade:" + tradeID }

// DMConversation builds the conversation id for a direct-message pair.
// The pair is sorted so both sides derive the same id. Direct messages
// are delivered per user, not through a room; the id keys the
// conversation in history and on clients.
func DMConversation(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("dm:%s:%s", userA, userB)
}

// ParseRoom splits a room id into its kind and the remainder.
func ParseRoom(roomID string) (RoomKind, string, error) {
	prefix, rest, ok := strings.Cut(roomID, ":")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("malformed room id %q", roomID)
	}

	kind := RoomKind(prefix)
	switch kind {
	case RoomKindLeague, RoomKindMatchup, RoomKindDraft, RoomKindTrade:
		return kind, rest, nil
	}
	return "", "", fmt.Errorf("unknown room kind %q", prefix)
}
