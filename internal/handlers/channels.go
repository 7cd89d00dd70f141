package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/hub"
	"github.com/chatwave/backend/internal/models"
)

// ChannelHandler manages channel creation and durable membership, and exposes
// live presence from the hub.
type ChannelHandler struct {
	queries *db.Queries
	hub     *hub.Hub
}

// NewChannelHandler creates a ChannelHandler.
func NewChannelHandler(queries *db.Queries, h *hub.Hub) *ChannelHandler {
	return &ChannelHandler{queries: queries, hub: h}
}

// Create makes a new channel with the caller as creator and first member.
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r, h.queries)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req models.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := h.queries.GetChannelByName(r.Context(), req.Name); err == nil {
		writeError(w, http.StatusBadRequest, "channel name already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to look up channel", err)
		return
	}

	var description sql.NullString
	if req.Description != "" {
		description = sql.NullString{String: req.Description, Valid: true}
	}

	channel, err := h.queries.CreateChannel(r.Context(), db.CreateChannelParams{
		Name:        req.Name,
		Description: description,
		CreatedBy:   user.ID,
	})
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to create channel", err)
		return
	}

	if err := h.queries.AddChannelMember(r.Context(), db.ChannelMemberParams{
		UserID:    user.ID,
		ChannelID: channel.ID,
	}); err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to add creator as member", err)
		return
	}

	writeJSON(w, http.StatusCreated, channelResponse(channel))
}

// List returns every channel the caller is a member of.
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r, h.queries)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	channels, err := h.queries.ListUserChannels(r.Context(), user.ID)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to list channels", err)
		return
	}

	resp := make([]models.ChannelResponse, 0, len(channels))
	for _, c := range channels {
		resp = append(resp, channelResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single channel by ID.
func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID, ok := channelIDParam(w, r)
	if !ok {
		return
	}

	channel, err := h.queries.GetChannel(r.Context(), channelID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	} else if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to fetch channel", err)
		return
	}

	writeJSON(w, http.StatusOK, channelResponse(channel))
}

// Join adds the caller to the channel's member list. Joining a channel the
// caller already belongs to is a no-op.
func (h *ChannelHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r, h.queries)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	channelID, ok := channelIDParam(w, r)
	if !ok {
		return
	}

	channel, err := h.queries.GetChannel(r.Context(), channelID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	} else if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to fetch channel", err)
		return
	}

	if err := h.queries.AddChannelMember(r.Context(), db.ChannelMemberParams{
		UserID:    user.ID,
		ChannelID: channelID,
	}); err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to join channel", err)
		return
	}

	writeJSON(w, http.StatusOK, channelResponse(channel))
}

// Leave removes the caller from the channel's member list.
func (h *ChannelHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r, h.queries)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	channelID, ok := channelIDParam(w, r)
	if !ok {
		return
	}

	if err := h.queries.RemoveChannelMember(r.Context(), db.ChannelMemberParams{
		UserID:    user.ID,
		ChannelID: channelID,
	}); err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to leave channel", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "left channel successfully"})
}

// Presence returns the IDs of users currently holding a live connection to
// the channel.
func (h *ChannelHandler) Presence(w http.ResponseWriter, r *http.Request) {
	channelID, ok := channelIDParam(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, models.PresenceResponse{
		ChannelID: channelID,
		Online:    h.hub.Members(channelID),
	})
}

func channelIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	channelID, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return 0, false
	}
	return channelID, true
}

func channelResponse(c db.Channel) models.ChannelResponse {
	return models.ChannelResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description.String,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
	}
}
