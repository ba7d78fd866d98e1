// Package session provides storage backends for browser sessions.
//
// The browser only ever holds an opaque session id in an HTTP-only cookie.
// The store maps the sha256 of that id to the backend access token plus the
// identity it was issued for, with a TTL aligned to the token expiry.
package session

import (
	"context"
	"errors"
	"time"
)

// Data is what we keep per live session.
type Data struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrNotFound = errors.New("session not found or expired")

type Store interface {
	Save(ctx context.Context, idHash string, data Data, expiresAt time.Time) error
	Lookup(ctx context.Context, idHash string) (Data, error)
	Revoke(ctx context.Context, idHash string) error
	Ping(ctx context.Context) error
	Close() error
}
