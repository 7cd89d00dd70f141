package db

import (
	"context"
	"time"
)

const createUser = `
INSERT INTO users (username, email, password_hash, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, username, email, password_hash, created_at
`

// CreateUserParams holds the fields needed to create a user.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// CreateUser inserts a new user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Username, arg.Email, arg.PasswordHash, toMillis(time.Now()))
	return scanUser(row)
}

const getUserByID = `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE id = ?
`

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	return scanUser(row)
}

const getUserByUsername = `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE username = ?
`

// GetUserByUsername fetches a user by its unique username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	return scanUser(row)
}

const getUserByEmail = `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE email = ?
`

// GetUserByEmail fetches a user by its unique email address.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		return User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}
