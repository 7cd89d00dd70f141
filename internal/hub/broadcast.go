package hub

import (
	"encoding/json"
	"log/slog"

	"github.com/chatwave/backend/internal/models"
)

// NoExclusion is the excludeUser value for broadcasts that target every
// member. User IDs are positive, so zero never matches anyone.
const NoExclusion int64 = 0

// Broadcast delivers the event to every connection registered for the
// channel except excludeUser. Delivery failures are isolated per recipient:
// the failing pair is pruned and closed after the pass, and every other
// member still receives the event.
func (h *Hub) Broadcast(channelID int64, event models.Event, excludeUser int64) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode broadcast event",
			slog.Int64("channel_id", channelID),
			slog.String("type", event.Type),
			slog.Any("error", err))
		return
	}

	targets := h.Snapshot(channelID)

	var failed []int64
	for userID, s := range targets {
		if userID == excludeUser {
			continue
		}
		if err := s.Send(payload); err != nil {
			slog.Warn("dropping unreachable channel member",
				slog.Int64("channel_id", channelID),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
			failed = append(failed, userID)
		}
	}

	for _, userID := range failed {
		if h.Release(channelID, userID, targets[userID]) {
			targets[userID].Close()
		}
	}
}
