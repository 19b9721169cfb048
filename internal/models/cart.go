package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type CartItem struct {
	CategoryID  string          `json:"categoryId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	MaxQuantity int             `json:"maxQuantity"`
}

type AppliedPromo struct {
	Code          string           `json:"code"`
	DiscountType  DiscountType     `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MinPurchase   *decimal.Decimal `json:"minPurchase,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
}

// Cart is a price quote owned by one browsing session, not an inventory
// hold. It is persisted in redis keyed by user and expires 15 minutes
// after it first becomes non-empty.
type Cart struct {
	FestivalID string        `json:"festivalId"`
	Items      []CartItem    `json:"items"`
	Promo      *AppliedPromo `json:"promoCode,omitempty"`
	ExpiresAt  time.Time     `json:"expiresAt"`
}

// Expired reports whether the cart's quote window has lapsed. An empty
// cart carries no expiry and never expires.
func (c *Cart) Expired(now time.Time) bool {
	return len(c.Items) > 0 && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// IsEmpty reports whether the cart holds no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns the line item for a category, or nil.
func (c *Cart) Item(categoryID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].CategoryID == categoryID {
			return &c.Items[i]
		}
	}
	return nil
}
