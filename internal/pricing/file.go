// Package pricing loads the cost table used for per-request cost estimates.
package pricing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
)

// yamlTable is the on-disk layout of a pricing file:
//
//	default:
//	  prompt: 0.01
//	  completion: 0.03
//	rules:
//	  - match: gpt-4o
//	    prompt: 0.005
//	    completion: 0.015
type yamlTable struct {
	Default *yamlPrice `yaml:"default"`
	Rules   []yamlRule `yaml:"rules"`
}

type yamlPrice struct {
	Prompt     float64 `yaml:"prompt"`
	Completion float64 `yaml:"completion"`
}

type yamlRule struct {
	Match      string  `yaml:"match"`
	Prompt     float64 `yaml:"prompt"`
	Completion float64 `yaml:"completion"`
}

// Load returns the pricing table selected by the configuration.
func Load(cfg *config.PricingConfig) (domain.PricingTable, error) {
	if cfg == nil || cfg.File == "" {
		return domain.DefaultPricingTable(), nil
	}
	return LoadFile(cfg.File)
}

// LoadFile reads a YAML pricing file. Rules keep their file order.
// A file without a default section keeps the built-in default price.
func LoadFile(path string) (domain.PricingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.PricingTable{}, fmt.Errorf("failed to read pricing file: %w", err)
	}

	table, err := Parse(data)
	if err != nil {
		return domain.PricingTable{}, fmt.Errorf("pricing file %s: %w", path, err)
	}

	return table, nil
}

// Parse decodes a YAML pricing table.
func Parse(data []byte) (domain.PricingTable, error) {
	var raw yamlTable

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return domain.PricingTable{}, fmt.Errorf("failed to parse yaml: %w", err)
	}

	table := domain.PricingTable{
		Rules:   make([]domain.PricingRule, 0, len(raw.Rules)),
		Default: domain.DefaultPricingTable().Default,
	}

	if raw.Default != nil {
		table.Default = domain.PricingConfig{
			InputCostPer1K:  raw.Default.Prompt,
			OutputCostPer1K: raw.Default.Completion,
		}
	}

	for _, rule := range raw.Rules {
		table.Rules = append(table.Rules, domain.PricingRule{
			Match: strings.ToLower(strings.TrimSpace(rule.Match)),
			Pricing: domain.PricingConfig{
				InputCostPer1K:  rule.Prompt,
				OutputCostPer1K: rule.Completion,
			},
		})
	}

	if err := table.Validate(); err != nil {
		return domain.PricingTable{}, err
	}

	return table, nil
}

// WithRules returns a copy of table with rules evaluated ahead of its own.
func WithRules(table domain.PricingTable, rules ...domain.PricingRule) domain.PricingTable {
	merged := make([]domain.PricingRule, 0, len(rules)+len(table.Rules))
	merged = append(merged, rules...)
	merged = append(merged, table.Rules...)

	return domain.PricingTable{
		Rules:   merged,
		Default: table.Default,
	}
}
