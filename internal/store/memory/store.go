package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
)

// Store keeps conversations in process memory, suitable for tests and
// throwaway deployments.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]chat.Message
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string][]chat.Message)}
}

// Load returns a copy of the stored messages.
func (s *Store) Load(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.sessions[sessionID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Save replaces the stored sequence with a copy of messages.
func (s *Store) Save(_ context.Context, sessionID string, messages []chat.Message) error {
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)

	s.mu.Lock()
	s.sessions[sessionID] = copied
	s.mu.Unlock()
	return nil
}

// List summarizes all sessions.
func (s *Store) List(_ context.Context) ([]chat.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]chat.SessionSummary, 0, len(s.sessions))
	for id, messages := range s.sessions {
		summaries = append(summaries, chat.Summarize(id, messages))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SessionID < summaries[j].SessionID
	})
	return summaries, nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
