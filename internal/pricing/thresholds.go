// Package pricing evaluates margins and recomputes selling prices.
package pricing

import "github.com/shopspring/decimal"

// Default margin thresholds, in percent.
const (
	DefaultMinMarginRate         = 10
	DefaultRecommendedMarginRate = 50
)

// Thresholds are the margin rates, in percent, used to grade margins and to
// decide auto-disable.
type Thresholds struct {
	MinMarginRate         decimal.Decimal
	RecommendedMarginRate decimal.Decimal
}

// DefaultThresholds returns the 10% minimum and 50% recommended rates.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMarginRate:         decimal.NewFromInt(DefaultMinMarginRate),
		RecommendedMarginRate: decimal.NewFromInt(DefaultRecommendedMarginRate),
	}
}

// NewThresholds builds thresholds from percentages.
func NewThresholds(minRate, recommendedRate float64) Thresholds {
	return Thresholds{
		MinMarginRate:         decimal.NewFromFloat(minRate),
		RecommendedMarginRate: decimal.NewFromFloat(recommendedRate),
	}
}
