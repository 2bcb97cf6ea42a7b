package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
)

// GeminiChatModel adapts Google's Gemini API to eino.
type GeminiChatModel struct {
	client      *genai.Client
	model       string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

// NewGeminiChatModel creates a Gemini API client.
func NewGeminiChatModel(ctx context.Context, cfg config.AIConfig) (*GeminiChatModel, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiChatModel{
		client:      client,
		model:       cfg.Gemini.Model,
		temperature: float32Ptr(cfg.Temperature),
		topP:        float32Ptr(cfg.TopP),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: m.temperature,
		TopP:        m.topP,
		MaxTokens:   m.maxTokens,
	}, opts...)

	system, contents, err := toGeminiContents(input)
	if err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if options.Temperature != nil {
		temperature := *options.Temperature
		genCfg.Temperature = &temperature
	}
	if options.TopP != nil {
		topP := *options.TopP
		genCfg.TopP = &topP
	}
	if options.MaxTokens != nil {
		genCfg.MaxOutputTokens = int32(*options.MaxTokens)
	}

	resp, err := m.client.Models.GenerateContent(ctx, *options.Model, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	return schema.AssistantMessage(resp.Text(), nil), nil
}

// Stream delivers the full reply as a single chunk.
func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// toGeminiContents splits system messages into the system instruction and
// maps the remaining turns onto Gemini's user/model roles.
func toGeminiContents(input []*schema.Message) (string, []*genai.Content, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.User:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			return "", nil, fmt.Errorf("gemini: unsupported message role %q", msg.Role)
		}
	}
	return strings.Join(system, "\n\n"), contents, nil
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)
