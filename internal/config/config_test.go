package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "AI_PROVIDER",
		"AI_TEMPERATURE", "AI_TOP_P", "AI_MAX_TOKENS", "AI_TIMEOUT_SECONDS",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL",
		"GEMINI_API_KEY", "GEMINI_MODEL", "PERSONA_MODE", "PERSONA_DIR",
		"PERSONALITY_FILE", "STORE_BACKEND", "MEMORY_DIR", "MEMORY_FORMAT",
		"SQLITE_PATH", "DATABASE_URL", "CHAT_SERIALIZE_SESSIONS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAI.Model)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, PersonaModeDynamic, cfg.Persona.Mode)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "../memory", cfg.Store.MemoryDir)
	assert.Equal(t, "json", cfg.Store.Format)
	assert.False(t, cfg.Chat.SerializeSessions)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AI_TEMPERATURE", "0.4")
	t.Setenv("AI_MAX_TOKENS", "512")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("CHAT_SERIALIZE_SESSIONS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.4, *cfg.AI.Temperature, 1e-9)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.True(t, cfg.Chat.SerializeSessions)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port with space":   {"PORT": "80 80"},
		"unknown provider":  {"AI_PROVIDER": "llama"},
		"bad temperature":   {"AI_TEMPERATURE": "warm"},
		"unknown backend":   {"STORE_BACKEND": "redis"},
		"postgres no url":   {"STORE_BACKEND": "postgres"},
		"bad memory format": {"MEMORY_FORMAT": "toml"},
		"bad persona mode":  {"PERSONA_MODE": "mixed"},
		"bad serialize":     {"CHAT_SERIALIZE_SESSIONS": "sometimes"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range env {
				t.Setenv(key, value)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfigEnabledPerProvider(t *testing.T) {
	ark := AIConfig{Provider: ProviderArk, Ark: ArkConfig{Model: "ep-1", AccessKey: "ak", SecretKey: "sk"}}
	assert.True(t, ark.Enabled())

	gemini := AIConfig{Provider: ProviderGemini, Gemini: GeminiConfig{Model: "gemini-2.5-flash"}}
	assert.False(t, gemini.Enabled())
}
