package handlers

import (
	"net/http"
	"strconv"

	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/models"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// MessageHandler serves persisted channel history.
type MessageHandler struct {
	queries *db.Queries
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(queries *db.Queries) *MessageHandler {
	return &MessageHandler{queries: queries}
}

// List returns a page of channel messages in chronological order.
// Query parameters: limit (default 50, max 100) and offset (default 0).
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	channelID, ok := channelIDParam(w, r)
	if !ok {
		return
	}

	limit := int64(defaultMessageLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 1 || parsed > maxMessageLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	var offset int64
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		offset = parsed
	}

	rows, err := h.queries.ListChannelMessages(r.Context(), db.ListChannelMessagesParams{
		ChannelID: channelID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list messages", err)
		return
	}

	// The query returns newest first; reverse into chronological order.
	resp := make([]models.MessageResponse, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		m := rows[i]
		resp = append(resp, models.MessageResponse{
			ID:        m.ID,
			Content:   m.Content,
			UserID:    m.UserID,
			Username:  m.Username,
			ChannelID: m.ChannelID,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
