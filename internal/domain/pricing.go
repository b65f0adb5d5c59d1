package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	defaultInputCostPer1K  = 0.01
	defaultOutputCostPer1K = 0.03

	gpt4InputCostPer1K  = 0.03
	gpt4OutputCostPer1K = 0.06

	gpt35InputCostPer1K  = 0.0015
	gpt35OutputCostPer1K = 0.002

	claude3OpusInputCostPer1K  = 0.015
	claude3OpusOutputCostPer1K = 0.075

	claude3SonnetInputCostPer1K  = 0.003
	claude3SonnetOutputCostPer1K = 0.015

	claude3HaikuInputCostPer1K  = 0.00025
	claude3HaikuOutputCostPer1K = 0.00125
)

// PricingConfig contains model pricing information.
type PricingConfig struct {
	InputCostPer1K  float64 // USD per 1K input tokens
	OutputCostPer1K float64 // USD per 1K output tokens
}

// PricingRule prices every model whose lower-cased name contains Match.
type PricingRule struct {
	Match   string
	Pricing PricingConfig
}

// PricingTable is an ordered list of substring rules plus a fallback price.
// Rules are checked in order and the first match wins.
type PricingTable struct {
	Rules   []PricingRule
	Default PricingConfig
}

// DefaultPricingTable returns the built-in pricing table.
func DefaultPricingTable() PricingTable {
	return PricingTable{
		Rules: []PricingRule{
			{Match: "gpt-4", Pricing: PricingConfig{gpt4InputCostPer1K, gpt4OutputCostPer1K}},
			{Match: "gpt-3.5", Pricing: PricingConfig{gpt35InputCostPer1K, gpt35OutputCostPer1K}},
			{Match: "claude-3-opus", Pricing: PricingConfig{claude3OpusInputCostPer1K, claude3OpusOutputCostPer1K}},
			{Match: "claude-3-sonnet", Pricing: PricingConfig{claude3SonnetInputCostPer1K, claude3SonnetOutputCostPer1K}},
			{Match: "claude-3-haiku", Pricing: PricingConfig{claude3HaikuInputCostPer1K, claude3HaikuOutputCostPer1K}},
		},
		Default: PricingConfig{
			InputCostPer1K:  defaultInputCostPer1K,
			OutputCostPer1K: defaultOutputCostPer1K,
		},
	}
}

// Lookup returns the pricing for a model.
func (t PricingTable) Lookup(model string) PricingConfig {
	lower := strings.ToLower(model)
	for _, rule := range t.Rules {
		if strings.Contains(lower, rule.Match) {
			return rule.Pricing
		}
	}
	return t.Default
}

// Validate rejects tables that could produce negative or unmatched costs.
func (t PricingTable) Validate() error {
	if t.Default.InputCostPer1K < 0 || t.Default.OutputCostPer1K < 0 {
		return errors.New("default pricing cannot be negative")
	}

	for i, rule := range t.Rules {
		if rule.Match == "" {
			return fmt.Errorf("pricing rule %d: match cannot be empty", i)
		}
		if rule.Match != strings.ToLower(rule.Match) {
			return fmt.Errorf("pricing rule %d: match %q must be lower-case", i, rule.Match)
		}
		if rule.Pricing.InputCostPer1K < 0 || rule.Pricing.OutputCostPer1K < 0 {
			return fmt.Errorf("pricing rule %d (%s): prices cannot be negative", i, rule.Match)
		}
	}

	return nil
}
