package models

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	Code          string           `bun:"code,pk" json:"code"`
	FestivalID    string           `bun:"festival_id" json:"festivalId"`
	DiscountType  DiscountType     `bun:"discount_type" json:"discountType"`
	DiscountValue decimal.Decimal  `bun:"discount_value" json:"discountValue"`
	MinPurchase   *decimal.Decimal `bun:"min_purchase" json:"minPurchase,omitempty"`
	MaxDiscount   *decimal.Decimal `bun:"max_discount" json:"maxDiscount,omitempty"`
	Active        bool             `bun:"active" json:"active"`
}

// Applied converts a stored promo into the shape carried on a cart.
func (p *PromoCode) Applied() *AppliedPromo {
	return &AppliedPromo{
		Code:          p.Code,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		MinPurchase:   p.MinPurchase,
		MaxDiscount:   p.MaxDiscount,
	}
}

// PaymentEvent records a payment-provider confirmation received on the
// webhook feed. Checkout refuses to materialize tickets until the
// intent it was given appears here (or the provider confirms it
// synchronously).
type PaymentEvent struct {
	bun.BaseModel `bun:"table:payment_events"`

	IntentID    string `bun:"intent_id,pk" json:"intentId"`
	AmountCents int64  `bun:"amount_cents" json:"amountCents"`
	Currency    string `bun:"currency" json:"currency"`
	Status      string `bun:"status" json:"status"`
}
