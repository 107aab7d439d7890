package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps history in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Entry)}
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	if err := validate(sessionID, entries); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.sessions[sessionID] = append(m.sessions[sessionID], stamp(sessionID, e))
	}
	return nil
}

func (m *MemoryStore) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.sessions[sessionID]))
	copy(out, m.sessions[sessionID])
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// stamp fills the identity fields of an entry being appended.
func stamp(sessionID string, e Entry) Entry {
	e.SessionID = sessionID
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}
