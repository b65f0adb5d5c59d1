// Package openai provides a completion engine for any OpenAI-compatible
// upstream using the official SDK. Pointing the base URL at a multi-provider
// router lets this one engine serve every provider tag.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

const (
	engineName = "openai"

	objectChatCompletion = "chat.completion"
	roleAssistant        = "assistant"
)

// Engine implements domain.Engine for OpenAI-compatible upstreams.
type Engine struct {
	client openai.Client
	name   string
}

// NewEngine creates a new OpenAI engine.
// Retries and timeouts are delegated to the SDK.
func NewEngine(config Config) (*Engine, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
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
		client: openai.NewClient(opts...),
		name:   engineName,
	}, nil
}

// Complete sends a completion request and returns the full result.
func (e *Engine) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API",
		observability.String("messages", domain.FormatMessages(req.Messages)),
	)

	resp, err := e.client.Chat.Completions.New(ctx, toSDKParams(req))
	if err != nil {
		logger.Debug("OpenAI API call failed", observability.Error(err))
		return nil, classify(err)
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int64("prompt_tokens", resp.Usage.PromptTokens),
		observability.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	return toDomainResult(resp), nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return e.name
}

// Providers returns the tags this engine serves directly. It is also
// registered as the default engine for every other tag.
func (e *Engine) Providers() []domain.ProviderTag {
	return []domain.ProviderTag{domain.ProviderOpenAI, domain.ProviderAzure}
}

// classify maps SDK errors onto error kinds by HTTP status.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.NewUpstreamError(
			domain.KindFromStatus(apiErr.StatusCode),
			domain.ProviderOpenAI,
			fmt.Errorf("OpenAI API call failed: %w", err),
		)
	}
	return fmt.Errorf("OpenAI API call failed: %w", err)
}

// toSDKParams converts a domain request to SDK ChatCompletionNewParams.
// Absent sampling parameters are left unset.
func toSDKParams(req *domain.CompletionRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case "user":
			messages[i] = openai.UserMessage(msg.Content)
		case "assistant":
			messages[i] = openai.AssistantMessage(msg.Content)
		case "system":
			messages[i] = openai.SystemMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.User != "" {
		params.User = openai.String(req.User)
	}

	return params
}

func toDomainResult(resp *openai.ChatCompletion) *domain.CompletionResult {
	choices := make([]domain.Choice, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		role := string(choice.Message.Role)
		if role == "" {
			role = roleAssistant
		}
		choices = append(choices, domain.Choice{
			Index:        int(choice.Index),
			Message:      domain.Message{Role: role, Content: choice.Message.Content},
			FinishReason: choice.FinishReason,
		})
	}

	result := &domain.CompletionResult{
		ID:      resp.ID,
		Object:  objectChatCompletion,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: choices,
	}

	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		result.Usage = &domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}

	return result
}
