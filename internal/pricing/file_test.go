package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/pricing"
)

func TestParse(t *testing.T) {
	t.Run("should keep rule order and lower-case matches", func(t *testing.T) {
		table, err := pricing.Parse([]byte(`
default:
  prompt: 0.002
  completion: 0.004
rules:
  - match: GPT-4o
    prompt: 0.005
    completion: 0.015
  - match: gpt-4
    prompt: 0.03
    completion: 0.06
`))

		require.NoError(t, err)
		require.Len(t, table.Rules, 2)
		require.Equal(t, "gpt-4o", table.Rules[0].Match)
		require.InDelta(t, 0.005, table.Lookup("gpt-4o-mini").InputCostPer1K, 1e-12)
		require.InDelta(t, 0.06, table.Lookup("gpt-4").OutputCostPer1K, 1e-12)
		require.InDelta(t, 0.002, table.Lookup("mistral").InputCostPer1K, 1e-12)
	})

	t.Run("should keep the built-in default when omitted", func(t *testing.T) {
		table, err := pricing.Parse([]byte("rules: []\n"))

		require.NoError(t, err)
		require.Equal(t, domain.DefaultPricingTable().Default, table.Default)
		require.Empty(t, table.Rules)
	})

	t.Run("should accept an empty document", func(t *testing.T) {
		table, err := pricing.Parse(nil)

		require.NoError(t, err)
		require.Equal(t, domain.DefaultPricingTable().Default, table.Default)
	})

	t.Run("should reject unknown fields", func(t *testing.T) {
		_, err := pricing.Parse([]byte("currency: EUR\n"))
		require.Error(t, err)
	})

	t.Run("should reject negative prices", func(t *testing.T) {
		_, err := pricing.Parse([]byte("rules:\n  - match: gpt\n    prompt: -1\n"))
		require.Error(t, err)
	})

	t.Run("should reject rules without a match", func(t *testing.T) {
		_, err := pricing.Parse([]byte("rules:\n  - prompt: 1\n"))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("should return the built-in table without a file", func(t *testing.T) {
		table, err := pricing.Load(&config.PricingConfig{})

		require.NoError(t, err)
		require.Equal(t, domain.DefaultPricingTable(), table)
	})

	t.Run("should read the configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pricing.yaml")
		require.NoError(t, os.WriteFile(path, []byte("rules:\n  - match: llama\n    prompt: 0.0001\n    completion: 0.0002\n"), 0o600))

		table, err := pricing.Load(&config.PricingConfig{File: path})

		require.NoError(t, err)
		require.Equal(t, "llama", table.Rules[0].Match)
	})

	t.Run("should fail for a missing file", func(t *testing.T) {
		_, err := pricing.Load(&config.PricingConfig{File: filepath.Join(t.TempDir(), "missing.yaml")})
		require.Error(t, err)
	})
}

func TestWithRules(t *testing.T) {
	t.Run("should evaluate extra rules first", func(t *testing.T) {
		base := domain.DefaultPricingTable()

		table := pricing.WithRules(base, domain.PricingRule{Match: "gpt-4-free"})

		require.Equal(t, domain.PricingConfig{}, table.Lookup("gpt-4-free"))
		require.Equal(t, base.Lookup("gpt-4"), table.Lookup("gpt-4"))
		require.Len(t, base.Rules, 5)
	})
}
