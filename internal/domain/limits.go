package domain

import "strings"

// TokenLimits bounds a model's output and total context, in tokens.
type TokenLimits struct {
	MaxTokens     int
	ContextWindow int
}

type limitRule struct {
	match  string
	limits TokenLimits
}

// Longer names come first so that a variant is not shadowed by its base model.
//
//nolint:gochecknoglobals // Immutable lookup table
var limitRules = []limitRule{
	{match: "gpt-4-turbo", limits: TokenLimits{MaxTokens: 4096, ContextWindow: 128000}},
	{match: "gpt-4-32k", limits: TokenLimits{MaxTokens: 32768, ContextWindow: 32768}},
	{match: "gpt-4", limits: TokenLimits{MaxTokens: 8192, ContextWindow: 8192}},
	{match: "gpt-3.5-turbo-16k", limits: TokenLimits{MaxTokens: 16384, ContextWindow: 16384}},
	{match: "gpt-3.5-turbo", limits: TokenLimits{MaxTokens: 4096, ContextWindow: 16385}},
	{match: "claude-3-opus", limits: TokenLimits{MaxTokens: 4096, ContextWindow: 200000}},
	{match: "claude-3-sonnet", limits: TokenLimits{MaxTokens: 4096, ContextWindow: 200000}},
	{match: "claude-3-haiku", limits: TokenLimits{MaxTokens: 4096, ContextWindow: 200000}},
	{match: "claude-2", limits: TokenLimits{MaxTokens: 4096, ContextWindow: 100000}},
}

// DefaultTokenLimits applies to models missing from the table.
//
//nolint:gochecknoglobals // Immutable fallback
var DefaultTokenLimits = TokenLimits{MaxTokens: 4096, ContextWindow: 8192}

// ModelLimits returns the token limits of a model. The lower-cased name is
// matched against the table in order and the first substring match wins.
func ModelLimits(model string) TokenLimits {
	lower := strings.ToLower(model)
	for _, rule := range limitRules {
		if strings.Contains(lower, rule.match) {
			return rule.limits
		}
	}
	return DefaultTokenLimits
}
