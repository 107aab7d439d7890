package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS message_store (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (session_id, seq)
)`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists. Use ":memory:" for a throwaway database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}
	// An in-memory database lives only as long as its single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %v", ErrStoreConnection, err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM message_store WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: failed to clear session %s: %v", ErrStoreConnection, sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	if err := validate(sessionID, entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}
	defer tx.Rollback()

	var next int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM message_store WHERE session_id = ?`, sessionID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("%w: failed to read sequence: %v", ErrStoreConnection, err)
	}

	for _, e := range entries {
		e = stamp(sessionID, e)
		next++
		_, err := tx.ExecContext(ctx,
			`INSERT INTO message_store (id, session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.SessionID, next, string(e.Role), e.Content, e.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("%w: failed to append entry: %v", ErrStoreConnection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit failed: %v", ErrStoreConnection, err)
	}
	return nil
}

func (s *SQLiteStore) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM message_store WHERE session_id = ? ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreConnection, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			role    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &role, &e.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Role = Role(role)
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
