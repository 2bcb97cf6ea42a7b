package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
)

// ErrNoChoices is returned when a completion carries no choices.
var ErrNoChoices = errors.New("ai: completion has no choices")

// OpenAIChatModel adapts the OpenAI chat completions API to eino.
type OpenAIChatModel struct {
	client      openai.Client
	model       string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

// NewOpenAIChatModel creates a client for the OpenAI (or compatible)
// endpoint. SDK retries are disabled; failures surface immediately.
func NewOpenAIChatModel(cfg config.AIConfig) *OpenAIChatModel {
	options := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.OpenAI.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.APIKey != "" {
		options = append(options, option.WithAPIKey(cfg.OpenAI.APIKey))
	}
	if cfg.Timeout > 0 {
		options = append(options, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIChatModel{
		client:      openai.NewClient(options...),
		model:       cfg.OpenAI.Model,
		temperature: float32Ptr(cfg.Temperature),
		topP:        float32Ptr(cfg.TopP),
		maxTokens:   cfg.MaxTokens,
	}
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: m.temperature,
		TopP:        m.topP,
		MaxTokens:   m.maxTokens,
	}, opts...)

	messages, err := toOpenAIMessages(input)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    *options.Model,
		Messages: messages,
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(float64(*options.Temperature))
	}
	if options.TopP != nil {
		params.TopP = openai.Float(float64(*options.TopP))
	}
	if options.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*options.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	msg := schema.AssistantMessage(choice.Message.Content, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: choice.FinishReason,
		Usage: &schema.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	return msg, nil
}

// Stream delivers the full completion as a single chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toOpenAIMessages(input []*schema.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case schema.User:
			messages = append(messages, openai.UserMessage(msg.Content))
		case schema.Assistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", msg.Role)
		}
	}
	return messages, nil
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)
