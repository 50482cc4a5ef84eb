// Package session implements server-side auth sessions. Sessions are rows
// with an expiry and a revocation flag; tokens reference a session id, so
// signing out kills the token immediately. The store is observable: parts of
// the system subscribe to sign-in/sign-out events before initialization, so
// sessions restored from the database at startup are never missed.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned on sign-in with a wrong email or
	// password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotFound is returned when no session matches the lookup.
	ErrNotFound = errors.New("session not found")
)

// Session is a server-side auth session.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the session is usable: not revoked and not expired.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

// Event is delivered to subscribers on session changes.
type Event struct {
	Type    EventType
	Session Session
}

// Repository persists sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	ListActive(ctx context.Context, now time.Time) ([]*Session, error)
}

// UserAccount is the slice of a user account the store needs for
// authentication.
type UserAccount struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}

// Accounts abstracts the user storage the session store authenticates
// against.
type Accounts interface {
	AccountByEmail(ctx context.Context, email string) (*UserAccount, error)
	CreateAccount(ctx context.Context, email, passwordHash string) (*UserAccount, error)
}
