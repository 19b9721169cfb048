package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"festival-ticketing/internal/models"
)

func item(categoryID string, qty int, unitPrice float64) models.CartItem {
	return models.CartItem{
		CategoryID: categoryID,
		Quantity:   qty,
		UnitPrice:  decimal.NewFromFloat(unitPrice),
	}
}

func percentPromo(code string, pct float64) *models.AppliedPromo {
	return &models.AppliedPromo{
		Code:          code,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromFloat(pct),
	}
}

func TestPriceWithPercentagePromo(t *testing.T) {
	// subtotal=100, 10% off -> discount=10.00, serviceFee=4.50,
	// processingFee=94.50*0.029+0.30=3.04, total=97.54
	b := Price([]models.CartItem{item("ga", 2, 50)}, percentPromo("TENOFF", 10))

	assert.Equal(t, "100.00", b.Subtotal.StringFixed(2))
	assert.Equal(t, "10.00", b.Discount.StringFixed(2))
	assert.Equal(t, "4.50", b.ServiceFee.StringFixed(2))
	assert.Equal(t, "3.04", b.ProcessingFee.StringFixed(2))
	assert.Equal(t, "97.54", b.Total.StringFixed(2))
}

func TestPriceIsDeterministic(t *testing.T) {
	items := []models.CartItem{item("ga", 3, 33.33), item("vip", 1, 120)}
	promo := percentPromo("TENOFF", 10)

	first := Price(items, promo)
	second := Price(items, promo)

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Discount.Equal(second.Discount))
	assert.True(t, first.Total.GreaterThanOrEqual(decimal.Zero))
}

func TestPriceWithoutPromo(t *testing.T) {
	b := Price([]models.CartItem{item("ga", 1, 40)}, nil)

	assert.Equal(t, "40.00", b.Subtotal.StringFixed(2))
	assert.True(t, b.Discount.IsZero())
	assert.Equal(t, "2.00", b.ServiceFee.StringFixed(2))
	// 42.00*0.029+0.30 = 1.518 -> 1.52
	assert.Equal(t, "1.52", b.ProcessingFee.StringFixed(2))
	assert.Equal(t, "43.52", b.Total.StringFixed(2))
}

func TestFixedDiscountClampedToSubtotal(t *testing.T) {
	promo := &models.AppliedPromo{
		Code:          "BIGOFF",
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(500),
	}
	b := Price([]models.CartItem{item("ga", 1, 30)}, promo)

	assert.Equal(t, "30.00", b.Discount.StringFixed(2))
	assert.True(t, b.ServiceFee.IsZero())
	assert.True(t, b.ProcessingFee.IsZero())
	assert.True(t, b.Total.IsZero())
}

func TestMaxDiscountCap(t *testing.T) {
	cap := decimal.NewFromInt(5)
	promo := &models.AppliedPromo{
		Code:          "TENOFF",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxDiscount:   &cap,
	}
	b := Price([]models.CartItem{item("ga", 2, 50)}, promo)

	assert.Equal(t, "5.00", b.Discount.StringFixed(2))
}

func TestMinPurchaseNotMet(t *testing.T) {
	min := decimal.NewFromInt(200)
	promo := &models.AppliedPromo{
		Code:          "TENOFF",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		MinPurchase:   &min,
	}
	b := Price([]models.CartItem{item("ga", 2, 50)}, promo)

	assert.True(t, b.Discount.IsZero())
}

func TestEmptyCartPricesToZero(t *testing.T) {
	b := Price(nil, nil)

	assert.True(t, b.Subtotal.IsZero())
	assert.True(t, b.Total.IsZero())
	assert.True(t, b.ProcessingFee.IsZero())
}
