package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
)

// NewChatModel builds the eino chat model for cfg.Provider.
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("credentials or model missing for provider %q", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIChatModel(cfg), nil
	case config.ProviderArk:
		return cfg.NewArkChatModel(ctx)
	case config.ProviderGemini:
		return NewGeminiChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}
