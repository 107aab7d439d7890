// Package history persists the story transcript as an append-only log of
// role-tagged entries keyed by session id.
package history

import (
	"context"
	"errors"
	"time"
)

var (
	ErrStoreConnection = errors.New("history store unavailable")
	ErrMissingSession  = errors.New("session id is required")
	ErrInvalidRole     = errors.New("invalid entry role")
)

// Role tags who authored an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Entry is a single message in a session's history.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	SessionID string    `json:"session_id" yaml:"session_id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store is an append-only log of entries keyed by session id.
type Store interface {
	// Clear removes every entry of the session.
	Clear(ctx context.Context, sessionID string) error

	// Append adds entries to the end of the session's log, atomically.
	Append(ctx context.Context, sessionID string, entries ...Entry) error

	// Entries returns the session's entries in insertion order.
	Entries(ctx context.Context, sessionID string) ([]Entry, error)

	// Close releases resources and closes connections
	Close() error
}

func validate(sessionID string, entries []Entry) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	for _, e := range entries {
		if !e.Role.Valid() {
			return ErrInvalidRole
		}
	}
	return nil
}
