package hub

import (
	"context"
	"encoding/json"

	"github.com/astralfield/realtime/pkg/domain"
)

// Broadcast entry points for external producers: score feeds, matchup
// engines, trade and waiver processors. Each encodes its payload and
// routes it to the room the event belongs to; player updates and alerts
// go to every connection.

func (h *Hub) BroadcastScoreUpdate(ctx context.Context, p domain.ScoreUpdatePayload) int {
	payload, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("score update encode failed", "error", err)
		return 0
	}
	return h.PublishToRoom(ctx, domain.LeagueRoom(p.LeagueID), domain.EventScoreUpdate, payload)
}

func (h *Hub) BroadcastMatchupUpdate(ctx context.Context, p domain.MatchupUpdatePayload) int {
	payload, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("matchup update encode failed", "error", err)
		return 0
	}
	return h.PublishToRoom(ctx, domain.MatchupRoom(p.MatchupID), domain.EventMatchupUpdate, payload)
}

func (h *Hub) BroadcastDraftUpdate(ctx context.Context, p domain.DraftUpdatePayload) int {
	payload, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("draft update encode failed", "error", err)
		return 0
	}
	return h.PublishToRoom(ctx, domain.DraftRoom(p.DraftID), domain.EventDraftUpdate, payload)
}

// BroadcastTradeNotification reaches the trade room and, when the trade
// carries its league, the league room as well.
func (h *Hub) BroadcastTradeNotification(ctx context.Context, p domain.TradeNotificationPayload) int {
	payload, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("trade notification encode failed", "error", err)
		return 0
	}
	delivered := h.PublishToRoom(ctx, domain.TradeRoom(p.TradeID), domain.EventTradeNotification, payload)
	if p.LeagueID != "" {
		delivered += h.PublishToRoom(ctx, domain.LeagueRoom(p.LeagueID), domain.EventTradeNotification, payload)
	}
	return delivered
}

func (h *Hub) BroadcastWaiverNotification(ctx context.Context, p domain.WaiverNotificationPayload) int {
	payload, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("waiver notification encode failed", "error", err)
		return 0
	}
	return h.PublishToRoom(ctx, domain.LeagueRoom(p.LeagueID), domain.EventWaiverNotification, payload)
}

// BroadcastPlayerUpdate goes to every connection; player news is not
// scoped to a league.
func (h *Hub) BroadcastPlayerUpdate(ctx context.Context, p domain.PlayerUpdatePayload) int {
	payload, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("player update encode failed", "error", err)
		return 0
	}
	return h.Publish(ctx, h.newEnvelope(domain.EventPlayerUpdate, "", "", payload))
}

func (h *Hub) BroadcastInjuryAlert(ctx context.Context, payload json.RawMessage) int {
	return h.Publish(ctx, h.newEnvelope(domain.EventInjuryAlert, "", "", payload))
}

func (h *Hub) BroadcastBreakingNews(ctx context.Context, payload json.RawMessage) int {
	return h.Publish(ctx, h.newEnvelope(domain.EventBreakingNews, "", "", payload))
}

// BroadcastRealTimeStats pushes a live stat tick into a league room.
func (h *Hub) BroadcastRealTimeStats(ctx context.Context, leagueID string, payload json.RawMessage) int {
	return h.PublishToRoom(ctx, domain.LeagueRoom(leagueID), domain.EventRealTimeStats, payload)
}
