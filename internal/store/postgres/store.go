// Package postgres keeps conversations in PostgreSQL, one row per session.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
)

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS twin_conversations (
	session_id TEXT PRIMARY KEY,
	messages   JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// PGStore implements store.Store on a pgx connection pool.
type PGStore struct {
	db *pgxpool.Pool
}

// New wraps an existing pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Open connects to databaseURL and applies the schema.
func Open(ctx context.Context, databaseURL string) (*PGStore, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := New(db)
	if err := s.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateSchema creates the conversations table if it does not exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// DropSchema removes the conversations table.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS twin_conversations`)
	return err
}

// Load returns the stored messages for sessionID.
func (s *PGStore) Load(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT messages FROM twin_conversations WHERE session_id = $1`,
		sessionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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

// Save upserts the full sequence for sessionID.
func (s *PGStore) Save(ctx context.Context, sessionID string, messages []chat.Message) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return store.Wrap(store.OpSave, sessionID, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO twin_conversations (session_id, messages, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (session_id) DO UPDATE
		 SET messages = EXCLUDED.messages, updated_at = EXCLUDED.updated_at`,
		sessionID, string(raw),
	)
	return store.Wrap(store.OpSave, sessionID, err)
}

// List summarizes all sessions ordered by id.
func (s *PGStore) List(ctx context.Context) ([]chat.SessionSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT session_id, messages FROM twin_conversations ORDER BY session_id COLLATE "C" ASC`)
	if err != nil {
		return nil, store.Wrap(store.OpList, "", err)
	}
	defer rows.Close()

	summaries := []chat.SessionSummary{}
	for rows.Next() {
		var sessionID string
		var raw []byte
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

// Close closes the pool.
func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}

func decode(raw []byte) ([]chat.Message, error) {
	messages := []chat.Message{}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("corrupt session row: %w", err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

// Ensure PGStore implements store.Store at compile time.
var _ store.Store = (*PGStore)(nil)
