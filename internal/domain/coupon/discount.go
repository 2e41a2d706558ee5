package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ValidatePercentage checks that pct lies within [0, 100].
func ValidatePercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	return nil
}

// Discounted returns subtotal reduced by pct percent.
func Discounted(subtotal, pct decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(subtotal.Mul(pct).Div(hundred))
}
