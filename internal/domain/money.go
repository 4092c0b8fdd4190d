package domain

import "github.com/shopspring/decimal"

// Hundred is used for percentage conversions.
var Hundred = decimal.NewFromInt(100)

// Margin returns selling minus sourcing.
func Margin(selling, sourcing decimal.Decimal) decimal.Decimal {
	return selling.Sub(sourcing)
}

// MarginRate returns (selling - sourcing) / sourcing * 100. A non-positive
// sourcing price yields zero.
func MarginRate(selling, sourcing decimal.Decimal) decimal.Decimal {
	if !sourcing.IsPositive() {
		return decimal.Zero
	}
	return Margin(selling, sourcing).Div(sourcing).Mul(Hundred)
}

// Markup returns amount * (1 + rate/100).
func Markup(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Add(rate.Div(Hundred)))
}
