package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
	"github.com/zhouzirui/digital-twin/backend/internal/model/chat"
)

// ErrEmptyResponse is returned when the model produced no reply text.
var ErrEmptyResponse = errors.New("ai: model returned an empty response")

// Service encapsulates AI-powered chat functionality
type Service struct {
	cfg    config.AIConfig
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewService creates the chat model selected by cfg and wraps it.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger)
}

// NewServiceWithModel compiles the prompt chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:    cfg,
		chain:  runnable,
		logger: logger.Named("ai"),
	}, nil
}

// GenerateResponse sends [system] + history + [user] to the model and
// returns the reply text.
func (s *Service) GenerateResponse(ctx context.Context, sessionID, systemPrompt string, history []chat.Message, userMessage string) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	input := s.buildChainInput(systemPrompt, history, userMessage)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}

	s.logger.Info("generated response",
		zap.String("session_id", sessionID),
		zap.String("provider", s.cfg.Provider),
		zap.Int("history", len(history)),
		zap.Int("length", len(response.Content)),
	)
	return response.Content, nil
}

func (s *Service) buildChainInput(systemPrompt string, history []chat.Message, userMessage string) map[string]any {
	return map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}
}

// buildHistoryMessages keeps every stored turn in order.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			history = append(history, schema.SystemMessage(msg.Content))
		}
	}
	return history
}
