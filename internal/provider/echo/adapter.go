// Package echo provides a completion engine that echoes back input messages.
// It makes no external calls and answers deterministically, which makes the
// whole proxy runnable locally without upstream credentials.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

const (
	engineName = "echo"

	// ModelName is the model to request when running locally. It is not in
	// the /v1/models catalog; any model classified as unknown is answered
	// the same way.
	ModelName = "echo4"
)

// Engine implements domain.Engine by echoing the conversation.
type Engine struct {
	name string
	now  func() time.Time
}

// NewEngine creates a new echo engine.
// No configuration is required as this engine operates entirely in-memory.
func NewEngine() *Engine {
	return &Engine{
		name: engineName,
		now:  time.Now,
	}
}

// Complete returns the conversation rendered as "[role]: content" lines.
func (e *Engine) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := observability.FromContext(ctx)
	logger.Debug("echoing request")

	content := buildEchoContent(req.Messages)

	// Simple word-based counting; the echo is as long as the prompt.
	promptTokens := countTokens(content)
	completionTokens := promptTokens

	now := e.now()

	logger.Debug("echo completed",
		observability.Int("prompt_tokens", promptTokens),
		observability.Int("completion_tokens", completionTokens),
	)

	return &domain.CompletionResult{
		ID:      fmt.Sprintf("echo-%d", now.UnixNano()),
		Object:  "chat.completion",
		Created: now.Unix(),
		Model:   req.Model,
		Choices: []domain.Choice{{
			Index:        0,
			Message:      domain.Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: &domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return e.name
}

// Providers returns the tags this engine serves.
func (e *Engine) Providers() []domain.ProviderTag {
	return []domain.ProviderTag{domain.ProviderUnknown}
}

// buildEchoContent constructs the echo response from request messages.
func buildEchoContent(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&builder, "[%s]: %s\n", msg.Role, msg.Content)
	}
	return builder.String()
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
