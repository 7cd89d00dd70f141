package db

import (
	"context"
	"time"
)

const createMessage = `
INSERT INTO messages (content, user_id, channel_id, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, content, user_id, channel_id, created_at
`

// CreateMessageParams holds the fields needed to persist a message.
type CreateMessageParams struct {
	Content   string
	UserID    int64
	ChannelID int64
}

// CreateMessage appends a message and returns the stored row with its
// assigned identifier and timestamp.
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRowContext(ctx, createMessage, arg.Content, arg.UserID, arg.ChannelID, toMillis(time.Now()))

	var m Message
	var createdAt int64
	if err := row.Scan(&m.ID, &m.Content, &m.UserID, &m.ChannelID, &createdAt); err != nil {
		return Message{}, err
	}
	m.CreatedAt = fromMillis(createdAt)
	return m, nil
}

const listChannelMessages = `
SELECT m.id, m.content, m.user_id, u.username, m.channel_id, m.created_at
FROM messages m
JOIN users u ON u.id = m.user_id
WHERE m.channel_id = ?
ORDER BY m.created_at DESC, m.id DESC
LIMIT ? OFFSET ?
`

// ListChannelMessagesParams selects a page of a channel's history.
type ListChannelMessagesParams struct {
	ChannelID int64
	Limit     int64
	Offset    int64
}

// ListChannelMessagesRow is a message joined with its author's username.
type ListChannelMessagesRow struct {
	ID        int64
	Content   string
	UserID    int64
	Username  string
	ChannelID int64
	CreatedAt time.Time
}

// ListChannelMessages returns a page of messages, newest first.
func (q *Queries) ListChannelMessages(ctx context.Context, arg ListChannelMessagesParams) ([]ListChannelMessagesRow, error) {
	rows, err := q.db.QueryContext(ctx, listChannelMessages, arg.ChannelID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ListChannelMessagesRow
	for rows.Next() {
		var m ListChannelMessagesRow
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Content, &m.UserID, &m.Username, &m.ChannelID, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = fromMillis(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
