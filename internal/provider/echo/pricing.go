package echo

import "github.com/davidbz/ember/internal/domain"

// PricingRule prices echo models at zero. It is prepended to the pricing
// table when the echo engine is enabled.
func PricingRule() domain.PricingRule {
	return domain.PricingRule{
		Match: engineName,
		Pricing: domain.PricingConfig{
			InputCostPer1K:  0,
			OutputCostPer1K: 0,
		},
	}
}
