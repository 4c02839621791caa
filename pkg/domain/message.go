package domain

import (
	"encoding/json"
	"time"
)

// EventKind identifies the type of an event flowing through the hub.
type EventKind string

// Inbound event kinds. This is a closed set: frames carrying any other
// kind are rejected at the boundary with a validation error.
const (
	EventJoinLeague        EventKind = "join_league"
	EventLeaveLeague       EventKind = "leave_league"
	EventJoinMatchup       EventKind = "join_matchup"
	EventLeaveMatchup      EventKind = "leave_matchup"
	EventJoinDraft         EventKind = "join_draft"
	EventJoinTradeRoom     EventKind = "join_trade_room"
	EventSendMessage       EventKind = "send_message"
	EventSendDirectMessage EventKind = "send_direct_message"
	EventDraftPick         EventKind = "draft_pick"
	EventTradeProposal     EventKind = "trade_proposal"
	EventWaiverClaim       EventKind = "waiver_claim"
	EventLineupChange      EventKind = "lineup_change"
	EventPing              EventKind = "ping"
)

// Outbound event kinds.
const (
	EventLeagueMessage      EventKind = "league_message"
	EventScoreUpdate        EventKind = "score_update"
	EventRealTimeStats      EventKind = "real_time_stats"
	EventPlayerUpdate       EventKind = "player_update"
	EventMatchupUpdate      EventKind = "matchup_update"
	EventDraftUpdate        EventKind = "draft_update"
	EventTradeNotification  EventKind = "trade_notification"
	EventWaiverNotification EventKind = "waiver_notification"
	EventInjuryAlert        EventKind = "injury_alert"
	EventBreakingNews       EventKind = "breaking_news"
	EventDirectMessage      EventKind = "direct_message"
	EventNotification       EventKind = "notification"
	EventServerShutdown     EventKind = "server_shutdown"
	EventPong               EventKind = "pong"
	EventError              EventKind = "error"
)

var inboundKinds = map[EventKind]struct{}{
	EventJoinLeague:        {},
	EventLeaveLeague:       {},
	EventJoinMatchup:       {},
	EventLeaveMatchup:      {},
	EventJoinDraft:         {},
	EventJoinTradeRoom:     {},
	EventSendMessage:       {},
	EventSendDirectMessage: {},
	EventDraftPick:         {},
	EventTradeProposal:     {},
	EventWaiverClaim:       {},
	EventLineupChange:      {},
	EventPing:              {},
}

// IsInbound reports whether the kind is a member of the closed inbound set.
func (k EventKind) IsInbound() bool {
	_, ok := inboundKinds[k]
	return ok
}

// Message is the wire frame exchanged with clients.
type Message struct {
	ID        string          `json:"id"`
	Kind      EventKind       `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Critical reports whether a kind must never be silently dropped on a
// congested connection. Dropping a draft pick or trade event loses domain
// state; a missed score tick is recovered by the next one.
func (k EventKind) Critical() bool {
	switch k {
	case EventDraftUpdate, EventTradeNotification, EventDirectMessage, EventServerShutdown:
		return true
	}
	return false
}

// Envelope is the immutable unit handed to the fanout and published on the
// cluster bus. Room targets a room broadcast, UserID targets point-to-point
// delivery; with neither set the envelope fans out to every connection.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	Room       string          `json:"room,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	OriginNode string          `json:"origin_node"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Frame renders the envelope as a client-facing message.
func (e *Envelope) Frame() Message {
	return Message{
		ID:        e.ID,
		Kind:      e.Kind,
		Timestamp: e.Timestamp,
		Data:      e.Payload,
	}
}
