// Package session keeps console logins. The browser only holds an opaque
// session id; the backend token stays on the server.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"kwitansi/internal/core"
)

// CookieName is the cookie carrying the session id.
const CookieName = "kwitansi_session"

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	User      core.User `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether s is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, token string, user core.User) (Session, error)
	// Get returns ErrNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

func newSession(token string, user core.User, now time.Time, ttl time.Duration) Session {
	return Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
