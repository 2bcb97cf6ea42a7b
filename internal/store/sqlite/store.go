// Package sqlite keeps conversations in a single SQLite database, one row
// per session.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
)

// Store implements store.Store on database/sql with the sqlite3 driver.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, ensuring that the parent
// directory exists, and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// InitSchema creates the conversations table.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			session_id TEXT PRIMARY KEY,
			messages TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return nil
}

// Load returns the stored messages for sessionID.
func (s *Store) Load(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages FROM conversations WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []chat.Message{}, nil
	}
	if err != nil {
		return nil, store.Wrap(store.OpLoad, sessionID, err)
	}

	messages, err := decode(raw)
	if err != nil {
		return nil, store.Wrap(store.OpLoad, sessionID, err)
	}
	return messages, nil
}

// Save upserts the whole sequence for sessionID.
func (s *Store) Save(ctx context.Context, sessionID string, messages []chat.Message) error {
	raw, err := encode(messages)
	if err != nil {
		return store.Wrap(store.OpSave, sessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, messages, updated_at)
		VALUES (?, ?, unixepoch())
		ON CONFLICT(session_id) DO UPDATE SET
			messages = excluded.messages,
			updated_at = excluded.updated_at`,
		sessionID, raw,
	)
	return store.Wrap(store.OpSave, sessionID, err)
}

// List summarizes all sessions ordered by id.
func (s *Store) List(ctx context.Context) ([]chat.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, messages FROM conversations ORDER BY session_id ASC`)
	if err != nil {
		return nil, store.Wrap(store.OpList, "", err)
	}
	defer rows.Close()

	summaries := []chat.SessionSummary{}
	for rows.Next() {
		var sessionID, raw string
		if err := rows.Scan(&sessionID, &raw); err != nil {
			return nil, store.Wrap(store.OpList, "", err)
		}
		messages, err := decode(raw)
		if err != nil {
			return nil, store.Wrap(store.OpList, sessionID, err)
		}
		summaries = append(summaries, chat.Summarize(sessionID, messages))
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(store.OpList, "", err)
	}
	return summaries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(messages []chat.Message) (string, error) {
	if messages == nil {
		messages = []chat.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(raw string) ([]chat.Message, error) {
	messages := []chat.Message{}
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("corrupt session row: %w", err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

var _ store.Store = (*Store)(nil)
