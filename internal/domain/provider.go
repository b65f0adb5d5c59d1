package domain

import "strings"

// ProviderTag is the coarse backend family a model name belongs to.
type ProviderTag string

// Known provider tags.
const (
	ProviderOpenAI      ProviderTag = "openai"
	ProviderAnthropic   ProviderTag = "anthropic"
	ProviderAzure       ProviderTag = "azure"
	ProviderBedrock     ProviderTag = "bedrock"
	ProviderVertexAI    ProviderTag = "vertex_ai"
	ProviderCohere      ProviderTag = "cohere"
	ProviderHuggingFace ProviderTag = "huggingface"
	ProviderUnknown     ProviderTag = "unknown"
)

// String implements fmt.Stringer.
func (p ProviderTag) String() string {
	return string(p)
}

type providerRule struct {
	tag     ProviderTag
	needles []string
}

// providerRules is evaluated top to bottom and the first match wins.
// The order is part of the contract: "azure-claude" resolves to anthropic.
//
//nolint:gochecknoglobals // Immutable lookup table
var providerRules = []providerRule{
	{tag: ProviderOpenAI, needles: []string{"gpt", "text-davinci", "text-curie"}},
	{tag: ProviderAnthropic, needles: []string{"claude"}},
	{tag: ProviderBedrock, needles: []string{"bedrock", "amazon"}},
	{tag: ProviderVertexAI, needles: []string{"vertex", "gemini", "palm"}},
	{tag: ProviderCohere, needles: []string{"cohere"}},
	{tag: ProviderHuggingFace, needles: []string{"huggingface", "hf:"}},
	{tag: ProviderAzure, needles: []string{"azure"}},
}

// ClassifyProvider maps a model name to its provider tag.
// Every input maps to exactly one tag, defaulting to ProviderUnknown.
func ClassifyProvider(model string) ProviderTag {
	lower := strings.ToLower(model)
	for _, rule := range providerRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.tag
			}
		}
	}
	return ProviderUnknown
}

// ProviderTags returns the full enumeration in rule order, unknown last.
func ProviderTags() []ProviderTag {
	tags := make([]ProviderTag, 0, len(providerRules)+1)
	for _, rule := range providerRules {
		tags = append(tags, rule.tag)
	}
	return append(tags, ProviderUnknown)
}
