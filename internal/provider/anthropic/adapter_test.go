package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/provider/anthropic"
)

const messageBody = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-haiku-20240307",
	"content": [{"type": "text", "text": "Hello"}, {"type": "text", "text": " there"}],
	"stop_reason": "max_tokens",
	"stop_sequence": null,
	"usage": {"input_tokens": 12, "output_tokens": 4}
}`

func newTestEngine(t *testing.T, handler http.HandlerFunc) *anthropic.Engine {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	engine, err := anthropic.NewEngine(anthropic.Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    5,
		MaxRetries: 0,
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine(t *testing.T) {
	t.Run("should create engine with api key", func(t *testing.T) {
		engine, err := anthropic.NewEngine(anthropic.Config{APIKey: "test-key"})

		require.NoError(t, err)
		require.Equal(t, "anthropic", engine.Name())
		require.Equal(t, []domain.ProviderTag{domain.ProviderAnthropic}, engine.Providers())
	})

	t.Run("should require api key", func(t *testing.T) {
		engine, err := anthropic.NewEngine(anthropic.Config{})

		require.Error(t, err)
		require.Nil(t, engine)
	})
}

func TestEngine_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("should lift system messages and map the result", func(t *testing.T) {
		var received map[string]any

		engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/messages", r.URL.Path)
			require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(messageBody))
		})

		temperature := 0.5
		result, err := engine.Complete(ctx, &domain.CompletionRequest{
			Model: "claude-3-haiku-20240307",
			Messages: []domain.Message{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
				{Role: "user", Content: "how are you"},
			},
			Temperature: &temperature,
			User:        "alice",
		})
		require.NoError(t, err)

		require.Equal(t, "claude-3-haiku-20240307", received["model"])
		require.InDelta(t, 4096.0, received["max_tokens"], 1e-9)
		require.InDelta(t, 0.5, received["temperature"], 1e-9)

		system := received["system"].([]any)
		require.Len(t, system, 1)
		require.Equal(t, "be brief", system[0].(map[string]any)["text"])

		messages := received["messages"].([]any)
		require.Len(t, messages, 3)
		require.Equal(t, "user", messages[0].(map[string]any)["role"])
		require.Equal(t, "assistant", messages[1].(map[string]any)["role"])

		metadata := received["metadata"].(map[string]any)
		require.Equal(t, "alice", metadata["user_id"])

		require.Equal(t, "msg_01", result.ID)
		require.Equal(t, "chat.completion", result.Object)
		require.Equal(t, "claude-3-haiku-20240307", result.Model)
		require.Len(t, result.Choices, 1)
		require.Equal(t, domain.Message{Role: "assistant", Content: "Hello there"}, result.Choices[0].Message)
		require.Equal(t, "length", result.Choices[0].FinishReason)
		require.Equal(t, &domain.Usage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16}, result.Usage)
	})

	t.Run("should pass explicit max tokens", func(t *testing.T) {
		var received map[string]any

		engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(messageBody))
		})

		maxTokens := 10
		_, err := engine.Complete(ctx, &domain.CompletionRequest{
			Model:     "claude-3-haiku-20240307",
			Messages:  []domain.Message{{Role: "user", Content: "hi"}},
			MaxTokens: &maxTokens,
		})
		require.NoError(t, err)
		require.InDelta(t, 10.0, received["max_tokens"], 1e-9)
		require.NotContains(t, received, "system")
	})

	t.Run("should classify upstream errors by status", func(t *testing.T) {
		engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		})

		result, err := engine.Complete(ctx, &domain.CompletionRequest{
			Model:    "claude-3-haiku-20240307",
			Messages: []domain.Message{{Role: "user", Content: "hi"}},
		})
		require.Error(t, err)
		require.Nil(t, result)

		var upstream *domain.UpstreamError
		require.True(t, errors.As(err, &upstream))
		require.Equal(t, domain.ErrorKindAuthentication, upstream.Kind)
		require.Equal(t, domain.ProviderAnthropic, upstream.Provider)
	})

	t.Run("should reject nil request", func(t *testing.T) {
		engine, err := anthropic.NewEngine(anthropic.Config{APIKey: "test-key"})
		require.NoError(t, err)

		_, err = engine.Complete(ctx, nil)
		require.ErrorContains(t, err, "request cannot be nil")
	})
}
