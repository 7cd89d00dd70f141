package db

import (
	"database/sql"
	"time"
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Channel is a named broadcast domain with a durable member list.
type Channel struct {
	ID          int64
	Name        string
	Description sql.NullString
	CreatedBy   int64
	CreatedAt   time.Time
}

// Message is a persisted chat message.
type Message struct {
	ID        int64
	Content   string
	UserID    int64
	ChannelID int64
	CreatedAt time.Time
}
