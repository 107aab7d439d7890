package history

import (
	"context"
	"strings"
)

// History is a session's transcript backed by a Store. It is the only
// writer of the session's entries during a run.
type History struct {
	sessionID string
	store     Store
}

// New binds a session id to a store.
func New(sessionID string, store Store) *History {
	return &History{sessionID: sessionID, store: store}
}

// SessionID returns the id the history is keyed by.
func (h *History) SessionID() string {
	return h.sessionID
}

// Reset clears the session's stored entries.
func (h *History) Reset(ctx context.Context) error {
	return h.store.Clear(ctx, h.sessionID)
}

// Record appends one completed exchange: the user input then the reply.
func (h *History) Record(ctx context.Context, input, reply string) error {
	return h.store.Append(ctx, h.sessionID,
		Entry{Role: RoleUser, Content: input},
		Entry{Role: RoleAssistant, Content: reply},
	)
}

// Entries returns the stored entries in chronological order.
func (h *History) Entries(ctx context.Context) ([]Entry, error) {
	return h.store.Entries(ctx, h.sessionID)
}

// Render returns the transcript as it is replayed into prompts.
func (h *History) Render(ctx context.Context) (string, error) {
	entries, err := h.Entries(ctx)
	if err != nil {
		return "", err
	}
	return Render(entries), nil
}

// Render formats entries one per line as "Human: ..." and "AI: ...".
func Render(entries []Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, speaker(e.Role)+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}

func speaker(r Role) string {
	if r == RoleAssistant {
		return "AI"
	}
	return "Human"
}
