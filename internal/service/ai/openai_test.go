package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "Hello from Roger"},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
}`

func newOpenAITestModel(t *testing.T, handler http.HandlerFunc) *OpenAIChatModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOpenAIChatModel(config.AIConfig{
		Provider: config.ProviderOpenAI,
		OpenAI: config.OpenAIConfig{
			APIKey:  "sk-test",
			BaseURL: server.URL + "/v1/",
			Model:   "gpt-4o-mini",
		},
	})
}

func TestOpenAIChatModelGenerate(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("persona"),
		schema.UserMessage("Hello"),
		schema.AssistantMessage("Hi", nil),
		schema.UserMessage("Who are you?"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from Roger", msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
	require.NotNil(t, msg.ResponseMeta)
	assert.Equal(t, 16, msg.ResponseMeta.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "persona", captured.Messages[0].Content)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "Who are you?", captured.Messages[3].Content)
}

func TestOpenAIChatModelDoesNotRetry(t *testing.T) {
	calls := 0
	m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("Hello")})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOpenAIChatModelNoChoices(t *testing.T) {
	m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "gpt-4o-mini", "choices": []}`))
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("Hello")})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestToOpenAIMessagesRejectsToolRole(t *testing.T) {
	_, err := toOpenAIMessages([]*schema.Message{{Role: schema.Tool, Content: "x"}})
	assert.Error(t, err)
}

func TestToGeminiContentsSplitsSystem(t *testing.T) {
	system, contents, err := toGeminiContents([]*schema.Message{
		schema.SystemMessage("persona"),
		schema.UserMessage("Hello"),
		schema.AssistantMessage("Hi", nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "persona", system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
