package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
	"github.com/zhouzirui/digital-twin/backend/internal/service/prompt"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
)

var (
	ErrValidation = errors.New("message is required")
	ErrProvider   = errors.New("language model request failed")
)

// Generator produces the assistant reply for a fully assembled context.
type Generator interface {
	GenerateResponse(ctx context.Context, sessionID, systemPrompt string, history []chat.Message, userMessage string) (string, error)
}

// Request is one inbound chat turn.
type Request struct {
	Message   string
	SessionID string
}

// Reply is the outcome of a successful turn.
type Reply struct {
	Response  string
	SessionID string
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for the system prompt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how new session identifiers are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithSessionLocks serializes turns that target the same session.
// Without it, concurrent turns on one session race and the last save wins.
func WithSessionLocks() Option {
	return func(s *Service) { s.locks = newSessionLocks() }
}

// Service runs chat turns against a conversation store and a generator.
type Service struct {
	store     store.Store
	prompts   prompt.Assembler
	generator Generator
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
	locks     *sessionLocks
}

// NewService wires the orchestrator.
func NewService(st store.Store, prompts prompt.Assembler, generator Generator, opts ...Option) *Service {
	s := &Service{
		store:     st,
		prompts:   prompts,
		generator: generator,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("chat")
	return s
}

// Chat runs a single turn: load history, ask the model, persist the
// user/assistant pair. Storage is only touched by the final save, so a
// failed turn leaves the previous state intact.
func (s *Service) Chat(ctx context.Context, req Request) (Reply, error) {
	// Blank messages are rejected as well as missing ones; a turn with no
	// user text would store an empty user message.
	if strings.TrimSpace(req.Message) == "" {
		return Reply{}, ErrValidation
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newID()
	}

	if s.locks != nil {
		unlock := s.locks.lock(sessionID)
		defer unlock()
	}

	history, err := s.store.Load(ctx, sessionID)
	if err != nil {
		s.logger.Error("load conversation failed", zap.String("session_id", sessionID), zap.Error(err))
		return Reply{}, fmt.Errorf("load conversation: %w", err)
	}

	systemPrompt := s.prompts.SystemPrompt(s.now())

	response, err := s.generator.GenerateResponse(ctx, sessionID, systemPrompt, history, req.Message)
	if err != nil {
		s.logger.Error("generate response failed", zap.String("session_id", sessionID), zap.Error(err))
		return Reply{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	updated := make([]chat.Message, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated, chat.UserMessage(req.Message), chat.AssistantMessage(response))

	if err := s.store.Save(ctx, sessionID, updated); err != nil {
		s.logger.Error("save conversation failed", zap.String("session_id", sessionID), zap.Error(err))
		return Reply{}, fmt.Errorf("save conversation: %w", err)
	}

	s.logger.Debug("turn stored", zap.String("session_id", sessionID), zap.Int("messages", len(updated)))
	return Reply{Response: response, SessionID: sessionID}, nil
}

// Sessions lists every stored conversation.
func (s *Service) Sessions(ctx context.Context) ([]chat.SessionSummary, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
