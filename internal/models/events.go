package models

import "time"

// Event types broadcast to channel members over the websocket.
const (
	EventMessage    = "message"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"

	// EventError is delivered only to the sender when its own message
	// could not be processed.
	EventError = "error"
)

// SystemUsername is the author attributed to presence and error events.
const SystemUsername = "System"

// Event is the single outbound wire shape. ID and UserID are present only
// for message events.
type Event struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id,omitempty"`
	Content   string    `json:"content"`
	Username  string    `json:"username"`
	UserID    int64     `json:"user_id,omitempty"`
	ChannelID int64     `json:"channel_id"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundFrame is a single client-to-server frame. The channel context comes
// from the connection, not the frame.
type InboundFrame struct {
	Content string `json:"content"`
}
