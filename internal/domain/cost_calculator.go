package domain

import "math"

const (
	tokensToPerK = 1000.0
	costScale    = 1e6 // round to 6 decimal places
)

// StandardCostCalculator implements standard token-based cost calculation.
type StandardCostCalculator struct {
	table PricingTable
}

// NewStandardCostCalculator creates a new cost calculator.
func NewStandardCostCalculator(table PricingTable) *StandardCostCalculator {
	return &StandardCostCalculator{
		table: table,
	}
}

// EstimateCost returns the USD cost of a completion rounded to 6 decimals.
// Negative token counts count as zero. Unknown models use the default price.
func (c *StandardCostCalculator) EstimateCost(model string, promptTokens, completionTokens int) float64 {
	pricing := c.table.Lookup(model)

	inputCost := float64(max(promptTokens, 0)) / tokensToPerK * pricing.InputCostPer1K
	outputCost := float64(max(completionTokens, 0)) / tokensToPerK * pricing.OutputCostPer1K

	return math.Round((inputCost+outputCost)*costScale) / costScale
}
