package domain

import "time"

// CompletionRequest represents an OpenAI-compatible chat completion request.
// Sampling parameters are pointers so that "absent" and "zero" stay distinct.
type CompletionRequest struct {
	Model            string         `json:"model"`
	Messages         []Message      `json:"messages"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	Stream           bool           `json:"stream,omitempty"`
	User             string         `json:"user,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// WithUser returns a shallow copy of the request carrying the given user.
func (r *CompletionRequest) WithUser(user string) *CompletionRequest {
	clone := *r
	clone.User = user
	return &clone
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// CompletionResult represents the engine's answer in OpenAI wire format.
type CompletionResult struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is a single generated output.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Tokens returns prompt and completion tokens, zero when usage is absent.
func (r *CompletionResult) Tokens() (int, int) {
	if r == nil || r.Usage == nil {
		return 0, 0
	}
	return r.Usage.PromptTokens, r.Usage.CompletionTokens
}

// RequestContext is the per-request correlation record.
// It is owned by exactly one in-flight request and never shared.
type RequestContext struct {
	TraceID   string
	UserID    string
	SessionID string
	StartTime time.Time
	Endpoint  string

	// Duration is filled in by the gateway once the engine call has finished.
	Duration time.Duration
}

// RequestSample is the metric sample emitted for every completion attempt.
type RequestSample struct {
	Model            string
	Provider         ProviderTag
	Status           string
	Duration         time.Duration
	PromptTokens     int
	CompletionTokens int
	Cost             float64
}

// Request outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ModelInfo describes an entry of the static model catalog.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}
