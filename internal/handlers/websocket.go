package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/hub"
	"github.com/chatwave/backend/internal/logging"
	"github.com/chatwave/backend/internal/models"
	"github.com/chatwave/backend/internal/services"
)

const (
	// Time allowed to deliver the close frame on a rejected connection.
	closeWriteWait = 10 * time.Second

	// Time allowed to read the next frame once the peer is live.
	readWait = 60 * time.Second

	// Largest accepted inbound frame.
	maxFrameSize = 4096

	// Budget for a single message persistence call.
	storeTimeout = 5 * time.Second
)

// TokenValidator authenticates an opaque connection token.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// ChatStore is the subset of db.Queries the websocket endpoint needs.
type ChatStore interface {
	GetUserByUsername(ctx context.Context, username string) (db.User, error)
	GetChannel(ctx context.Context, id int64) (db.Channel, error)
	IsChannelMember(ctx context.Context, arg db.ChannelMemberParams) (bool, error)
	CreateMessage(ctx context.Context, arg db.CreateMessageParams) (db.Message, error)
}

// ChatHandler upgrades websocket connections and drives each one through
// authenticate, join, message loop, and leave.
type ChatHandler struct {
	hub      *hub.Hub
	store    ChatStore
	auth     TokenValidator
	upgrader websocket.Upgrader
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(h *hub.Hub, store ChatStore, auth TokenValidator) *ChatHandler {
	return &ChatHandler{
		hub:   h,
		store: store,
		auth:  auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the browser clients'
			// configured API origin; tokens gate the connection itself.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/{channelID}?token=...
//
// Authentication happens after the upgrade so a rejected peer receives a
// policy-violation close frame (1008) rather than a bare HTTP error, which
// is what browser clients can observe.
func (h *ChatHandler) Serve(w http.ResponseWriter, r *http.Request) {
	channelID, ok := channelIDParam(w, r)
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	user, err := h.authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventWSAuthFailure, "websocket authentication failed")
		closeWebsocket(ws, websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	if err := h.authorize(r.Context(), channelID, user.ID); err != nil {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventWSForbidden, "websocket channel access denied")
		closeWebsocket(ws, websocket.ClosePolicyViolation, "not a channel member")
		return
	}

	sess := &chatSession{
		hub:       h.hub,
		store:     h.store,
		ws:        ws,
		conn:      hub.NewConn(ws),
		user:      user,
		channelID: channelID,
	}
	sess.run()
}

// authenticate resolves the token to a registered user. An unknown subject is
// an authentication failure, same as a bad signature.
func (h *ChatHandler) authenticate(ctx context.Context, token string) (db.User, error) {
	if token == "" {
		return db.User{}, fmt.Errorf("missing token")
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		return db.User{}, fmt.Errorf("validate token: %w", err)
	}

	user, err := h.store.GetUserByUsername(ctx, claims.Username())
	if err != nil {
		return db.User{}, fmt.Errorf("resolve token subject: %w", err)
	}
	return user, nil
}

// authorize requires the channel to exist and the user to be a member.
func (h *ChatHandler) authorize(ctx context.Context, channelID, userID int64) error {
	if _, err := h.store.GetChannel(ctx, channelID); err != nil {
		return fmt.Errorf("fetch channel: %w", err)
	}

	member, err := h.store.IsChannelMember(ctx, db.ChannelMemberParams{
		UserID:    userID,
		ChannelID: channelID,
	})
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return fmt.Errorf("user %d is not a member of channel %d", userID, channelID)
	}
	return nil
}

func closeWebsocket(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	ws.Close()
}

// chatSession drives one authenticated connection. It owns the connection
// exclusively; the hub only holds it as a lookup entry.
type chatSession struct {
	hub       *hub.Hub
	store     ChatStore
	ws        *websocket.Conn
	conn      *hub.Conn
	user      db.User
	channelID int64
}

func (s *chatSession) run() {
	go s.conn.WritePump()

	s.hub.Register(s.channelID, s.user.ID, s.conn)
	s.hub.Broadcast(s.channelID, models.Event{
		Type:      models.EventUserJoined,
		Content:   s.user.Username + " joined the channel",
		Username:  models.SystemUsername,
		ChannelID: s.channelID,
		Timestamp: time.Now().UTC(),
	}, hub.NoExclusion)

	slog.Info("user connected",
		slog.Int64("channel_id", s.channelID),
		slog.Int64("user_id", s.user.ID),
		slog.String("conn_id", s.conn.ID.String()))

	s.readLoop()

	// Only the session that still owns the registry entry announces the
	// departure; a session evicted by a reconnect stays silent.
	if s.hub.Release(s.channelID, s.user.ID, s.conn) {
		s.hub.Broadcast(s.channelID, models.Event{
			Type:      models.EventUserLeft,
			Content:   s.user.Username + " left the channel",
			Username:  models.SystemUsername,
			ChannelID: s.channelID,
			Timestamp: time.Now().UTC(),
		}, hub.NoExclusion)
	}
	s.conn.Close()

	slog.Info("user disconnected",
		slog.Int64("channel_id", s.channelID),
		slog.Int64("user_id", s.user.ID),
		slog.String("conn_id", s.conn.ID.String()))
}

// readLoop processes inbound frames until the peer disconnects. A malformed
// frame is dropped rather than tearing the session down.
func (s *chatSession) readLoop() {
	s.ws.SetReadLimit(maxFrameSize)
	s.ws.SetReadDeadline(time.Now().Add(readWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read failed",
					slog.Int64("user_id", s.user.ID),
					slog.Any("error", err))
			}
			return
		}
		s.ws.SetReadDeadline(time.Now().Add(readWait))

		var frame models.InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Debug("discarding malformed frame",
				slog.Int64("user_id", s.user.ID),
				slog.Any("error", err))
			continue
		}
		s.handleMessage(frame.Content)
	}
}

// handleMessage persists one inbound message and broadcasts the stored
// result. A persistence failure is fatal to this message only: nothing is
// broadcast, the sender gets an error event, and the session stays up.
func (s *chatSession) handleMessage(content string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msg, err := s.store.CreateMessage(ctx, db.CreateMessageParams{
		Content:   content,
		UserID:    s.user.ID,
		ChannelID: s.channelID,
	})
	if err != nil {
		slog.Error("failed to persist message",
			slog.Int64("channel_id", s.channelID),
			slog.Int64("user_id", s.user.ID),
			slog.Any("error", err))
		s.sendEvent(models.Event{
			Type:      models.EventError,
			Content:   "message could not be saved",
			Username:  models.SystemUsername,
			ChannelID: s.channelID,
			Timestamp: time.Now().UTC(),
		})
		return
	}

	s.hub.Broadcast(s.channelID, models.Event{
		Type:      models.EventMessage,
		ID:        msg.ID,
		Content:   msg.Content,
		Username:  s.user.Username,
		UserID:    s.user.ID,
		ChannelID: s.channelID,
		Timestamp: msg.CreatedAt,
	}, hub.NoExclusion)
}

// sendEvent delivers an event to this session's own peer only.
func (s *chatSession) sendEvent(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.conn.Send(payload); err != nil {
		slog.Debug("failed to deliver event to sender",
			slog.Int64("user_id", s.user.ID),
			slog.Any("error", err))
	}
}
