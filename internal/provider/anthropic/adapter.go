// Package anthropic provides a completion engine backed by the Anthropic
// Messages API. Requests and results are translated to and from the
// OpenAI chat completion shape the proxy speaks.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

const (
	engineName = "anthropic"

	objectChatCompletion = "chat.completion"
)

// Engine implements domain.Engine for Anthropic models.
type Engine struct {
	client anthropic.Client
	name   string
	now    func() time.Time
}

// NewEngine creates a new Anthropic engine.
func NewEngine(config Config) (*Engine, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	if config.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Engine{
		client: anthropic.NewClient(opts...),
		name:   engineName,
		now:    time.Now,
	}, nil
}

// Complete sends a Messages API request and returns an OpenAI-shaped result.
func (e *Engine) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling Anthropic API",
		observability.String("messages", domain.FormatMessages(req.Messages)),
	)

	msg, err := e.client.Messages.New(ctx, toSDKParams(req))
	if err != nil {
		logger.Debug("Anthropic API call failed", observability.Error(err))
		return nil, classify(err)
	}

	logger.Debug("Anthropic API call succeeded",
		observability.Int64("input_tokens", msg.Usage.InputTokens),
		observability.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return e.toDomainResult(msg), nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return e.name
}

// Providers returns the tags this engine serves.
func (e *Engine) Providers() []domain.ProviderTag {
	return []domain.ProviderTag{domain.ProviderAnthropic}
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return domain.NewUpstreamError(
			domain.KindFromStatus(apiErr.StatusCode),
			domain.ProviderAnthropic,
			fmt.Errorf("Anthropic API call failed: %w", err),
		)
	}
	return fmt.Errorf("Anthropic API call failed: %w", err)
}

// toSDKParams lifts system messages into the system parameter and keeps the
// remaining turns in order.
func toSDKParams(req *domain.CompletionRequest) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	// The Messages API requires max_tokens; default to the model's output limit.
	maxTokens := int64(domain.ModelLimits(req.Model).MaxTokens)
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
		System:    system,
	}

	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.User != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(req.User)}
	}

	return params
}

func (e *Engine) toDomainResult(msg *anthropic.Message) *domain.CompletionResult {
	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &domain.CompletionResult{
		ID:      msg.ID,
		Object:  objectChatCompletion,
		Created: e.now().Unix(),
		Model:   string(msg.Model),
		Choices: []domain.Choice{{
			Index:        0,
			Message:      domain.Message{Role: "assistant", Content: content.String()},
			FinishReason: finishReason(string(msg.StopReason)),
		}},
		Usage: &domain.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// finishReason maps Anthropic stop reasons onto OpenAI finish reasons.
func finishReason(stopReason string) string {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return stopReason
	}
}
