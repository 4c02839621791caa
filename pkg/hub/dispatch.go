package hub

import (
	"context"
	"encoding/json"

	"github.com/rs/xid"

	"github.com/astralfield/realtime/internal/metrics"
	"github.com/astralfield/realtime/pkg/domain"
	"github.com/astralfield/realtime/pkg/errors"
	"github.com/astralfield/realtime/pkg/persist"
)

type handlerFunc func(ctx context.Context, c *Connection, data json.RawMessage) error

func (h *Hub) buildHandlers() map[domain.EventKind]handlerFunc {
	return map[domain.EventKind]handlerFunc{
		domain.EventJoinLeague:        h.handleJoinLeague,
		domain.EventLeaveLeague:       h.handleLeaveLeague,
		domain.EventJoinMatchup:       h.handleJoinMatchup,
		domain.EventLeaveMatchup:      h.handleLeaveMatchup,
		domain.EventJoinDraft:         h.handleJoinDraft,
		domain.EventJoinTradeRoom:     h.handleJoinTradeRoom,
		domain.EventSendMessage:       h.handleSendMessage,
		domain.EventSendDirectMessage: h.handleSendDirectMessage,
		domain.EventDraftPick:         h.handleDraftPick,
		domain.EventTradeProposal:     h.handleTradeProposal,
		domain.EventWaiverClaim:       h.handleWaiverClaim,
		domain.EventLineupChange:      h.handleLineupChange,
		domain.EventPing:              h.handlePing,
	}
}

// Dispatch routes one inbound frame. Admission control runs before any
// parsing so a flooding client pays nothing past the limiter. Errors go
// back to the sender only, as structured error frames.
func (h *Hub) Dispatch(ctx context.Context, c *Connection, raw []byte) {
	if !h.limiter.Allow(c.id) {
		metrics.RateLimitDenials.Inc()
		h.fail(c, errors.New(errors.ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", "event rate limit exceeded"))
		return
	}

	var msg domain.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.fail(c, errors.Wrap(err, errors.ErrorTypeValidation, "MALFORMED_FRAME", "frame is not valid JSON"))
		return
	}

	if !msg.Kind.IsInbound() {
		h.fail(c, errors.New(errors.ErrorTypeValidation, "UNKNOWN_EVENT", "unknown event kind").
			WithDetails(string(msg.Kind)))
		return
	}

	metrics.MessagesReceived.WithLabelValues(string(msg.Kind)).Inc()

	if err := h.handlers[msg.Kind](ctx, c, msg.Data); err != nil {
		h.fail(c, err)
	}
}

// fail records an error and reports it to the offending connection.
func (h *Hub) fail(c *Connection, err error) {
	t := errors.TypeOf(err)
	metrics.ErrorsTotal.WithLabelValues(t.String()).Inc()
	h.window.AddError()

	message := "internal error"
	if e, ok := err.(*errors.Error); ok {
		message = e.Message
	}
	h.sendError(c, errors.CodeOf(err), message)

	h.errs.Handle(context.Background(), err)
}

func invalid(err error) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeValidation, "INVALID_PAYLOAD", "payload validation failed")
}

func decode[P interface{ Validate() error }](data json.RawMessage, p P) error {
	if err := domain.DecodeStrict(data, p); err != nil {
		return invalid(err)
	}
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}

func (h *Hub) handleJoinLeague(_ context.Context, c *Connection, data json.RawMessage) error {
	var p domain.JoinLeaguePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.registry.Join(c, domain.LeagueRoom(p.LeagueID)); err != nil {
		return err
	}
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	return nil
}

func (h *Hub) handleLeaveLeague(_ context.Context, c *Connection, data json.RawMessage) error {
	var p domain.JoinLeaguePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	h.registry.Leave(c.id, domain.LeagueRoom(p.LeagueID))
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	return nil
}

func (h *Hub) handleJoinMatchup(_ context.Context, c *Connection, data json.RawMessage) error {
	var p domain.JoinMatchupPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.registry.Join(c, domain.MatchupRoom(p.MatchupID)); err != nil {
		return err
	}
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	return nil
}

func (h *Hub) handleLeaveMatchup(_ context.Context, c *Connection, data json.RawMessage) error {
	var p domain.JoinMatchupPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	h.registry.Leave(c.id, domain.MatchupRoom(p.MatchupID))
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	return nil
}

func (h *Hub) handleJoinDraft(_ context.Context, c *Connection, data json.RawMessage) error {
	var p domain.JoinDraftPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.registry.Join(c, domain.DraftRoom(p.DraftID)); err != nil {
		return err
	}
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	return nil
}

func (h *Hub) handleJoinTradeRoom(_ context.Context, c *Connection, data json.RawMessage) error {
	var p domain.JoinTradeRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.registry.Join(c, domain.TradeRoom(p.TradeID)); err != nil {
		return err
	}
	metrics.RoomsCurrent.Set(float64(h.registry.RoomCount()))
	return nil
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Connection, data json.RawMessage) error {
	var p domain.SendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if !c.identity.CanAccessLeague(p.LeagueID) {
		return errors.New(errors.ErrorTypeAuthorization, "LEAGUE_FORBIDDEN", "not a member of this league").
			WithDetails(p.LeagueID)
	}

	body, err := domain.SanitizeMessage(p.Message)
	if err != nil {
		return invalid(err)
	}

	now := h.now()
	out := domain.LeagueMessagePayload{
		MessageID: xid.New().String(),
		LeagueID:  p.LeagueID,
		UserID:    c.identity.UserID,
		Username:  c.identity.Username,
		Message:   body,
		Type:      p.Type,
		Timestamp: now,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_FAILED", "could not encode message")
	}

	h.PublishToRoom(ctx, domain.LeagueRoom(p.LeagueID), domain.EventLeagueMessage, payload)

	if h.archive != nil {
		h.archive.SaveChatMessage(persistChat(out))
	}
	return nil
}

func (h *Hub) handleSendDirectMessage(ctx context.Context, c *Connection, data json.RawMessage) error {
	var p domain.SendDirectMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RecipientID == c.identity.UserID {
		return errors.New(errors.ErrorTypeValidation, "SELF_DM", "cannot message yourself")
	}

	body, err := domain.SanitizeMessage(p.Message)
	if err != nil {
		return invalid(err)
	}

	out := domain.DirectMessagePayload{
		MessageID:      xid.New().String(),
		ConversationID: domain.DMConversation(c.identity.UserID, p.RecipientID),
		SenderID:       c.identity.UserID,
		Sender:         c.identity.Username,
		RecipientID:    p.RecipientID,
		Message:        body,
		Type:           p.Type,
		Timestamp:      h.now(),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_FAILED", "could not encode message")
	}

	// Both participants receive the message on every device.
	delivered := h.PublishToUser(ctx, p.RecipientID, domain.EventDirectMessage, payload)
	h.PublishToUser(ctx, c.identity.UserID, domain.EventDirectMessage, payload)

	// An offline recipient gets the message as a queued notification once
	// they reconnect.
	if delivered == 0 && !h.presence.Online(p.RecipientID) && h.notifications != nil {
		if _, err := h.notifications.Enqueue(p.RecipientID, "direct_message", payload); err != nil {
			h.logger.Warn("could not queue offline dm", "recipient_id", p.RecipientID, "error", err)
		}
	}

	if h.archive != nil {
		h.archive.SaveDirectMessage(persistDM(out))
	}
	return nil
}

func (h *Hub) handleDraftPick(ctx context.Context, c *Connection, data json.RawMessage) error {
	var p domain.DraftPickPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if len(c.identity.LeagueIDs) == 0 {
		return errors.New(errors.ErrorTypeAuthorization, "ROOM_FORBIDDEN", "not authorized for drafts")
	}

	out := domain.DraftUpdatePayload{
		DraftID:    p.DraftID,
		PlayerID:   p.PlayerID,
		PickNumber: p.PickNumber,
		ByUserID:   c.identity.UserID,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_FAILED", "could not encode draft update")
	}

	h.PublishToRoom(ctx, domain.DraftRoom(p.DraftID), domain.EventDraftUpdate, payload)
	return nil
}

func (h *Hub) handleTradeProposal(ctx context.Context, c *Connection, data json.RawMessage) error {
	var p domain.TradeProposalPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if len(c.identity.LeagueIDs) == 0 {
		return errors.New(errors.ErrorTypeAuthorization, "ROOM_FORBIDDEN", "not authorized for trades")
	}

	out := domain.TradeNotificationPayload{
		TradeID:  p.TradeID,
		Status:   "proposed",
		Proposal: p.Proposal,
		ByUserID: c.identity.UserID,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_FAILED", "could not encode trade proposal")
	}

	h.PublishToRoom(ctx, domain.TradeRoom(p.TradeID), domain.EventTradeNotification, payload)
	return nil
}

func (h *Hub) handleWaiverClaim(ctx context.Context, c *Connection, data json.RawMessage) error {
	var p domain.WaiverClaimPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if !c.identity.CanAccessLeague(p.LeagueID) {
		return errors.New(errors.ErrorTypeAuthorization, "LEAGUE_FORBIDDEN", "not a member of this league").
			WithDetails(p.LeagueID)
	}

	out := domain.WaiverNotificationPayload{
		LeagueID: p.LeagueID,
		PlayerID: p.PlayerID,
		Priority: p.Priority,
		Status:   "submitted",
		ByUserID: c.identity.UserID,
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_FAILED", "could not encode waiver claim")
	}

	h.PublishToRoom(ctx, domain.LeagueRoom(p.LeagueID), domain.EventWaiverNotification, payload)
	return nil
}

// handleLineupChange relays a roster move to the sender's leagues as a
// generic notification event.
func (h *Hub) handleLineupChange(ctx context.Context, c *Connection, data json.RawMessage) error {
	var p domain.LineupChangePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if !c.identity.CanAccessTeam(p.TeamID) {
		return errors.New(errors.ErrorTypeAuthorization, "TEAM_FORBIDDEN", "not the owner of this team").
			WithDetails(p.TeamID)
	}

	payload, err := json.Marshal(domain.NotificationPayload{
		Category: "lineup_change",
		Data:     data,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "ENCODE_FAILED", "could not encode lineup change")
	}

	for _, leagueID := range c.identity.LeagueIDs {
		h.PublishToRoom(ctx, domain.LeagueRoom(leagueID), domain.EventNotification, payload)
	}
	return nil
}

func (h *Hub) handlePing(_ context.Context, c *Connection, _ json.RawMessage) error {
	env := h.newEnvelope(domain.EventPong, "", "", nil)
	return c.Enqueue(env)
}

func persistChat(p domain.LeagueMessagePayload) persist.ChatMessage {
	return persist.ChatMessage{
		ID:        p.MessageID,
		LeagueID:  p.LeagueID,
		RoomID:    domain.LeagueRoom(p.LeagueID),
		UserID:    p.UserID,
		Username:  p.Username,
		Body:      p.Message,
		Type:      p.Type,
		CreatedAt: p.Timestamp,
	}
}

func persistDM(p domain.DirectMessagePayload) persist.DirectMessage {
	return persist.DirectMessage{
		ID:             p.MessageID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		RecipientID:    p.RecipientID,
		Body:           p.Message,
		Type:           p.Type,
		CreatedAt:      p.Timestamp,
	}
}
