package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrExists   = errors.New("session: id already in use")
)

// Session represents an authenticated browser/agent association.
// It intentionally stores only an identity pointer, not auth state.
type Session struct {
	SessionID    string    `json:"session_id"`  // opaque token handed to the client
	IdentityID   string    `json:"identity_id"` // the authenticated subject
	CreatedAt    time.Time `json:"created_at"`
	LastAccessAt time.Time `json:"last_access_at"`
	ExpiresAt    time.Time `json:"expires_at"` // absolute expiry time
}

// Expired reports whether the absolute lifetime has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
//
// Every method is a single atomic step on the backing storage, so a
// cancelled request never leaves a half-written entry behind.
type Store interface {
	// Create persists a new session. It returns ErrExists if the id is
	// already present; ids are never overwritten.
	Create(ctx context.Context, s Session) error

	// Get returns ErrNotFound when the id is unknown or past ExpiresAt.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Touch sets LastAccessAt on an existing session. It returns
	// ErrNotFound instead of recreating a session that was deleted.
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// Delete removes the session. Unknown ids are not an error.
	Delete(ctx context.Context, sessionID string) error

	Close() error
}
