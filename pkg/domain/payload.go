package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxChatMessageLength caps the length of chat and direct-message bodies.
const MaxChatMessageLength = 500

// DecodeStrict decodes a payload into v, rejecting unknown fields so that
// malformed events fail at the boundary instead of deep in a handler.
func DecodeStrict(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Trailing garbage after the JSON value is also a malformed payload.
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}

// Inbound payloads, one schema per event kind.

type JoinLeaguePayload struct {
	LeagueID string `json:"league_id"`
}

func (p *JoinLeaguePayload) Validate() error {
	if p.LeagueID == "" {
		return errors.New("league_id is required")
	}
	return nil
}

type JoinMatchupPayload struct {
	MatchupID string `json:"matchup_id"`
}

func (p *JoinMatchupPayload) Validate() error {
	if p.MatchupID == "" {
		return errors.New("matchup_id is required")
	}
	return nil
}

type JoinDraftPayload struct {
	DraftID string `json:"draft_id"`
}

func (p *JoinDraftPayload) Validate() error {
	if p.DraftID == "" {
		return errors.New("draft_id is required")
	}
	return nil
}

type JoinTradeRoomPayload struct {
	TradeID string `json:"trade_id"`
}

func (p *JoinTradeRoomPayload) Validate() error {
	if p.TradeID == "" {
		return errors.New("trade_id is required")
	}
	return nil
}

type SendMessagePayload struct {
	LeagueID string `json:"league_id"`
	Message  string `json:"message"`
	Type     string `json:"type"`
}

func (p *SendMessagePayload) Validate() error {
	if p.LeagueID == "" {
		return errors.New("league_id is required")
	}
	if _, err := SanitizeMessage(p.Message); err != nil {
		return err
	}
	switch p.Type {
	case "chat", "reaction", "system":
		return nil
	}
	return fmt.Errorf("unknown message type %q", p.Type)
}

type SendDirectMessagePayload struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
	Type        string `json:"type"`
}

func (p *SendDirectMessagePayload) Validate() error {
	if p.RecipientID == "" {
		return errors.New("recipient_id is required")
	}
	if _, err := SanitizeMessage(p.Message); err != nil {
		return err
	}
	switch p.Type {
	case "chat", "reaction":
		return nil
	}
	return fmt.Errorf("unknown message type %q", p.Type)
}

type DraftPickPayload struct {
	DraftID    string `json:"draft_id"`
	PlayerID   string `json:"player_id"`
	PickNumber int    `json:"pick_number"`
}

func (p *DraftPickPayload) Validate() error {
	if p.DraftID == "" || p.PlayerID == "" {
		return errors.New("draft_id and player_id are required")
	}
	if p.PickNumber <= 0 {
		return errors.New("pick_number must be positive")
	}
	return nil
}

type TradeProposalPayload struct {
	TradeID  string          `json:"trade_id"`
	Proposal json.RawMessage `json:"proposal"`
}

func (p *TradeProposalPayload) Validate() error {
	if p.TradeID == "" {
		return errors.New("trade_id is required")
	}
	if len(p.Proposal) == 0 {
		return errors.New("proposal is required")
	}
	return nil
}

type WaiverClaimPayload struct {
	LeagueID string `json:"league_id"`
	PlayerID string `json:"player_id"`
	Priority int    `json:"priority"`
}

func (p *WaiverClaimPayload) Validate() error {
	if p.LeagueID == "" || p.PlayerID == "" {
		return errors.New("league_id and player_id are required")
	}
	if p.Priority < 0 {
		return errors.New("priority cannot be negative")
	}
	return nil
}

type LineupChangePayload struct {
	TeamID  string          `json:"team_id"`
	Changes json.RawMessage `json:"changes"`
}

func (p *LineupChangePayload) Validate() error {
	if p.TeamID == "" {
		return errors.New("team_id is required")
	}
	if len(p.Changes) == 0 {
		return errors.New("changes is required")
	}
	return nil
}

// SanitizeMessage trims a chat body, strips markup, and enforces the length
// cap. It returns the cleaned message or an error when nothing usable
// remains.
func SanitizeMessage(message string) (string, error) {
	cleaned := strings.TrimSpace(stripTags(message))
	if cleaned == "" {
		return "", errors.New("message is empty")
	}
	if len(cleaned) > MaxChatMessageLength {
		return "", fmt.Errorf("message exceeds %d characters", MaxChatMessageLength)
	}
	return cleaned, nil
}

func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Outbound payloads produced by the hub and its external producers.

type LeagueMessagePayload struct {
	MessageID string    `json:"message_id"`
	LeagueID  string    `json:"league_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type DirectMessagePayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Sender         string    `json:"sender"`
	RecipientID    string    `json:"recipient_id"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
}

type ScoreUpdatePayload struct {
	LeagueID string  `json:"league_id"`
	TeamID   string  `json:"team_id"`
	PlayerID string  `json:"player_id"`
	Points   float64 `json:"points"`
	Change   float64 `json:"change"`
}

type MatchupUpdatePayload struct {
	MatchupID  string  `json:"matchup_id"`
	LeagueID   string  `json:"league_id"`
	HomeScore  float64 `json:"home_score"`
	AwayScore  float64 `json:"away_score"`
	IsComplete bool    `json:"is_complete"`
}

type PlayerUpdatePayload struct {
	PlayerID string             `json:"player_id"`
	Status   string             `json:"status"`
	Stats    map[string]float64 `json:"stats,omitempty"`
}

type DraftUpdatePayload struct {
	DraftID    string `json:"draft_id"`
	TeamID     string `json:"team_id"`
	PlayerID   string `json:"player_id"`
	PickNumber int    `json:"pick_number"`
	ByUserID   string `json:"by_user_id,omitempty"`
}

type TradeNotificationPayload struct {
	LeagueID string          `json:"league_id"`
	TradeID  string          `json:"trade_id"`
	Status   string          `json:"status"`
	Proposal json.RawMessage `json:"proposal,omitempty"`
	ByUserID string          `json:"by_user_id,omitempty"`
}

type WaiverNotificationPayload struct {
	LeagueID string `json:"league_id"`
	PlayerID string `json:"player_id"`
	Priority int    `json:"priority"`
	Status   string `json:"status"`
	ByUserID string `json:"by_user_id,omitempty"`
}

type NotificationPayload struct {
	NotificationID string          `json:"notification_id,omitempty"`
	Category       string          `json:"category"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerShutdownPayload struct {
	Message string `json:"message"`
}
