package cart

import (
	"github.com/shopspring/decimal"

	"festival-ticketing/internal/models"
	"festival-ticketing/internal/money"
)

// Breakdown is derived from cart state on every call and never stored,
// so it cannot drift from the items and promo it was computed from.
type Breakdown struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	ServiceFee    decimal.Decimal `json:"serviceFee"`
	ProcessingFee decimal.Decimal `json:"processingFee"`
	Total         decimal.Decimal `json:"total"`
}

// Price computes the full pricing breakdown for a set of line items and
// an optional promo. Pure: same inputs, same output.
func Price(items []models.CartItem, promo *models.AppliedPromo) Breakdown {
	subtotal := money.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	subtotal = money.Round(subtotal)

	discount := promoDiscount(promo, subtotal)
	base := subtotal.Sub(discount)

	serviceFee := money.ServiceFee(base)
	processingFee := money.ProcessingFee(base.Add(serviceFee))

	total := base.Add(serviceFee).Add(processingFee)
	if total.Sign() < 0 {
		total = money.Zero
	}

	return Breakdown{
		Subtotal:      subtotal,
		Discount:      discount,
		ServiceFee:    serviceFee,
		ProcessingFee: processingFee,
		Total:         money.Round(total),
	}
}

// promoDiscount evaluates a promo against the subtotal. A promo whose
// minimum purchase is not met contributes nothing rather than erroring:
// the cart may shrink after the code was applied.
func promoDiscount(promo *models.AppliedPromo, subtotal decimal.Decimal) decimal.Decimal {
	if promo == nil {
		return money.Zero
	}
	if promo.MinPurchase != nil && subtotal.LessThan(*promo.MinPurchase) {
		return money.Zero
	}

	var d decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountPercentage:
		d = money.Percent(subtotal, promo.DiscountValue)
	case models.DiscountFixed:
		d = promo.DiscountValue
	default:
		return money.Zero
	}

	if promo.MaxDiscount != nil && d.GreaterThan(*promo.MaxDiscount) {
		d = *promo.MaxDiscount
	}
	return money.ClampDiscount(d, subtotal)
}
