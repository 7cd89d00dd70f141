package db

import (
	"context"
	"database/sql"
	"time"
)

const createChannel = `
INSERT INTO channels (name, description, created_by, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, name, description, created_by, created_at
`

// CreateChannelParams holds the fields needed to create a channel.
type CreateChannelParams struct {
	Name        string
	Description sql.NullString
	CreatedBy   int64
}

// CreateChannel inserts a new channel and returns the stored row.
func (q *Queries) CreateChannel(ctx context.Context, arg CreateChannelParams) (Channel, error) {
	row := q.db.QueryRowContext(ctx, createChannel, arg.Name, arg.Description, arg.CreatedBy, toMillis(time.Now()))
	return scanChannel(row)
}

const getChannel = `
SELECT id, name, description, created_by, created_at
FROM channels
WHERE id = ?
`

// GetChannel fetches a channel by primary key.
func (q *Queries) GetChannel(ctx context.Context, id int64) (Channel, error) {
	row := q.db.QueryRowContext(ctx, getChannel, id)
	return scanChannel(row)
}

const getChannelByName = `
SELECT id, name, description, created_by, created_at
FROM channels
WHERE name = ?
`

// GetChannelByName fetches a channel by its unique name.
func (q *Queries) GetChannelByName(ctx context.Context, name string) (Channel, error) {
	row := q.db.QueryRowContext(ctx, getChannelByName, name)
	return scanChannel(row)
}

const listUserChannels = `
SELECT c.id, c.name, c.description, c.created_by, c.created_at
FROM channels c
JOIN channel_members m ON m.channel_id = c.id
WHERE m.user_id = ?
ORDER BY c.created_at, c.id
`

// ListUserChannels returns every channel the user is a member of.
func (q *Queries) ListUserChannels(ctx context.Context, userID int64) ([]Channel, error) {
	rows, err := q.db.QueryContext(ctx, listUserChannels, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

const addChannelMember = `
INSERT OR IGNORE INTO channel_members (user_id, channel_id)
VALUES (?, ?)
`

// ChannelMemberParams identifies a (user, channel) membership pair.
type ChannelMemberParams struct {
	UserID    int64
	ChannelID int64
}

// AddChannelMember adds a user to a channel. Adding an existing member is a no-op.
func (q *Queries) AddChannelMember(ctx context.Context, arg ChannelMemberParams) error {
	_, err := q.db.ExecContext(ctx, addChannelMember, arg.UserID, arg.ChannelID)
	return err
}

const removeChannelMember = `
DELETE FROM channel_members
WHERE user_id = ? AND channel_id = ?
`

// RemoveChannelMember removes a user from a channel. Removing a non-member is a no-op.
func (q *Queries) RemoveChannelMember(ctx context.Context, arg ChannelMemberParams) error {
	_, err := q.db.ExecContext(ctx, removeChannelMember, arg.UserID, arg.ChannelID)
	return err
}

const isChannelMember = `
SELECT COUNT(*)
FROM channel_members
WHERE user_id = ? AND channel_id = ?
`

// IsChannelMember reports whether the user belongs to the channel.
func (q *Queries) IsChannelMember(ctx context.Context, arg ChannelMemberParams) (bool, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, isChannelMember, arg.UserID, arg.ChannelID).Scan(&count)
	return count > 0, err
}

func scanChannel(row rowScanner) (Channel, error) {
	var c Channel
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedBy, &createdAt); err != nil {
		return Channel{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}
