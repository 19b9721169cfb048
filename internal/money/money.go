package money

import "github.com/shopspring/decimal"

// All monetary amounts in the service are decimal values rounded to the
// minor currency unit (2 decimal places, half-up). Floats never touch
// a price on its way to the database or to Stripe.

var (
	Zero = decimal.Zero

	serviceFeeRate  = decimal.NewFromFloat(0.05)
	processingRate  = decimal.NewFromFloat(0.029)
	processingFixed = decimal.NewFromFloat(0.30)
	hundred         = decimal.NewFromInt(100)
)

// Round normalizes an amount to the minor currency unit (half-up).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromCents converts a Stripe-style integer amount to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// ToCents converts an amount to the integer minor-unit form Stripe expects.
func ToCents(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}

// Percent returns pct% of base, rounded.
func Percent(base decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

// ServiceFee is 5% of the discounted subtotal.
func ServiceFee(base decimal.Decimal) decimal.Decimal {
	if base.Sign() <= 0 {
		return Zero
	}
	return Round(base.Mul(serviceFeeRate))
}

// ProcessingFee is 2.9% of the base plus a fixed 0.30, zero when the
// base itself is zero or negative.
func ProcessingFee(base decimal.Decimal) decimal.Decimal {
	if base.Sign() <= 0 {
		return Zero
	}
	return Round(base.Mul(processingRate).Add(processingFixed))
}

// ClampDiscount bounds a discount to [0, subtotal].
func ClampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.Sign() < 0 {
		return Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return Round(discount)
}
