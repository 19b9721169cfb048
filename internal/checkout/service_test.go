package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/models"
	"festival-ticketing/internal/quota"
)

// mockLedger is an in-memory quota ledger with real capacity semantics
// so compensation tests can check conservation.
type mockLedger struct {
	remaining map[string]int
	reserved  []quota.Allocation
	released  []quota.Allocation
}

func (m *mockLedger) Reserve(_ context.Context, categoryID, userID string, qty int) (quota.Allocation, error) {
	if m.remaining[categoryID] < qty {
		return quota.Allocation{}, fmt.Errorf("category %s: %w", categoryID, apperrors.ErrQuotaExceeded)
	}
	m.remaining[categoryID] -= qty
	alloc := quota.Allocation{CategoryID: categoryID, UserID: userID, Quantity: qty}
	m.reserved = append(m.reserved, alloc)
	return alloc, nil
}

func (m *mockLedger) Release(_ context.Context, alloc quota.Allocation) error {
	m.remaining[alloc.CategoryID] += alloc.Quantity
	m.released = append(m.released, alloc)
	return nil
}

type mockCategories struct {
	categories map[string]*models.TicketCategory
}

func (m *mockCategories) GetCategory(_ context.Context, id string) (*models.TicketCategory, error) {
	if c, ok := m.categories[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

type mockTicketWriter struct {
	created []models.Ticket
	err     error
}

func (m *mockTicketWriter) CreateTickets(_ context.Context, tickets []models.Ticket) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, tickets...)
	return nil
}

type mockIssuer struct{}

func (mockIssuer) NewToken(ticketID string) (string, error) {
	return "tok-" + ticketID, nil
}

// mockVerifier approves any intent whose authorized amount matches the
// amount checkout asks about.
type mockVerifier struct {
	authorized map[string]decimal.Decimal
	lastAsked  decimal.Decimal
}

func (m *mockVerifier) VerifyAuthorized(_ context.Context, intentID string, amount decimal.Decimal, _ string) error {
	m.lastAsked = amount
	got, ok := m.authorized[intentID]
	if !ok {
		return fmt.Errorf("intent %s: %w", intentID, apperrors.ErrPaymentNotConfirmed)
	}
	if !got.Equal(amount) {
		return fmt.Errorf("intent %s authorized %s, want %s: %w",
			intentID, got.StringFixed(2), amount.StringFixed(2), apperrors.ErrPriceMismatch)
	}
	return nil
}

type mockCartCleaner struct{ cleared []string }

func (m *mockCartCleaner) Clear(_ context.Context, userID string) error {
	m.cleared = append(m.cleared, userID)
	return nil
}

type mockIssuedPublisher struct{ issued [][]models.Ticket }

func (m *mockIssuedPublisher) PublishTicketsIssued(tickets []models.Ticket) error {
	m.issued = append(m.issued, tickets)
	return nil
}

type fixture struct {
	svc      *Service
	ledger   *mockLedger
	writer   *mockTicketWriter
	verifier *mockVerifier
	cleaner  *mockCartCleaner
	events   *mockIssuedPublisher
}

func setupCheckout() *fixture {
	ledger := &mockLedger{remaining: map[string]int{"ga": 100, "vip": 2, "elsewhere": 50}}
	cats := &mockCategories{categories: map[string]*models.TicketCategory{
		"ga": {
			ID: "ga", FestivalID: "fest-1", Type: models.CategoryGeneral,
			Price: decimal.NewFromInt(50), Currency: "eur", Quota: 100,
		},
		"vip": {
			ID: "vip", FestivalID: "fest-1", Type: models.CategoryVIP,
			Price: decimal.NewFromInt(120), Currency: "eur", Quota: 2,
		},
		"elsewhere": {
			ID: "elsewhere", FestivalID: "fest-2", Type: models.CategoryGeneral,
			Price: decimal.NewFromInt(50), Currency: "eur", Quota: 50,
		},
	}}
	writer := &mockTicketWriter{}
	verifier := &mockVerifier{authorized: map[string]decimal.Decimal{}}
	cleaner := &mockCartCleaner{}
	events := &mockIssuedPublisher{}

	svc := &Service{
		Quota:      ledger,
		Categories: cats,
		Tickets:    writer,
		Tokens:     mockIssuer{},
		Payments:   verifier,
		Carts:      cleaner,
		Events:     events,
		Logger:     &logger.Logger{},
		Now:        time.Now,
	}
	return &fixture{svc: svc, ledger: ledger, writer: writer, verifier: verifier, cleaner: cleaner, events: events}
}

func liveCart(items ...models.CartItem) *models.Cart {
	return &models.Cart{
		FestivalID: "fest-1",
		Items:      items,
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}
}

// 2 GA at 50: subtotal 100, service fee 5, processing fee 3.35.
var twoGATotal = decimal.RequireFromString("108.35")

func TestCheckoutIssuesOneTicketPerUnit(t *testing.T) {
	f := setupCheckout()
	f.verifier.authorized["pi_1"] = twoGATotal

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 2, UnitPrice: decimal.NewFromInt(50)})
	tickets, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	require.NoError(t, err)

	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.Equal(t, models.TicketSold, tk.Status)
		assert.Equal(t, "user-1", tk.OwnerID)
		assert.Equal(t, "ga", tk.CategoryID)
		assert.True(t, tk.PricePaid.Equal(decimal.NewFromInt(50)))
		assert.NotEmpty(t, tk.QRToken)
	}
	assert.NotEqual(t, tickets[0].ID, tickets[1].ID)

	assert.Len(t, f.writer.created, 2)
	assert.Equal(t, []string{"user-1"}, f.cleaner.cleared)
	assert.Len(t, f.events.issued, 1)
	assert.Equal(t, 98, f.ledger.remaining["ga"])
	assert.Empty(t, f.ledger.released)
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	f := setupCheckout()

	_, err := f.svc.Checkout(context.Background(), "user-1", &models.Cart{}, "pi_1")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.Checkout(context.Background(), "user-1", nil, "pi_1")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestCheckoutExpiredCartRejected(t *testing.T) {
	f := setupCheckout()

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 1, UnitPrice: decimal.NewFromInt(50)})
	crt.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	assert.True(t, errors.Is(err, apperrors.ErrCartExpired))
	assert.Empty(t, f.ledger.reserved)
}

func TestCheckoutReservationFailureUnwindsEarlierLines(t *testing.T) {
	f := setupCheckout()

	// First line fits, second exceeds VIP capacity: the whole checkout
	// fails and the GA units come back.
	crt := liveCart(
		models.CartItem{CategoryID: "ga", Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		models.CartItem{CategoryID: "vip", Quantity: 3, UnitPrice: decimal.NewFromInt(120)},
	)
	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	assert.True(t, errors.Is(err, apperrors.ErrQuotaExceeded))

	assert.Equal(t, 100, f.ledger.remaining["ga"])
	assert.Equal(t, 2, f.ledger.remaining["vip"])
	assert.Empty(t, f.writer.created)
	assert.Empty(t, f.cleaner.cleared)
}

func TestCheckoutRejectsCrossFestivalCart(t *testing.T) {
	f := setupCheckout()

	// 1x50 + 1x50: subtotal 100, service fee 5, processing fee 3.35.
	// The amount matches, but the second line belongs to another
	// festival; the purchase must fail as a whole.
	f.verifier.authorized["pi_1"] = twoGATotal

	crt := liveCart(
		models.CartItem{CategoryID: "ga", Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		models.CartItem{CategoryID: "elsewhere", Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
	)
	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	assert.Empty(t, f.writer.created)
	assert.Equal(t, 100, f.ledger.remaining["ga"])
	assert.Equal(t, 50, f.ledger.remaining["elsewhere"])
}

func TestCheckoutPaymentMismatchReleasesQuota(t *testing.T) {
	f := setupCheckout()
	f.verifier.authorized["pi_1"] = decimal.NewFromInt(1) // wrong amount

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 2, UnitPrice: decimal.NewFromInt(50)})
	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	assert.True(t, errors.Is(err, apperrors.ErrPriceMismatch))

	assert.Equal(t, 100, f.ledger.remaining["ga"])
	assert.Empty(t, f.writer.created)
}

func TestCheckoutUnconfirmedPaymentReleasesQuota(t *testing.T) {
	f := setupCheckout()

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 1, UnitPrice: decimal.NewFromInt(50)})
	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_unknown")
	assert.True(t, errors.Is(err, apperrors.ErrPaymentNotConfirmed))
	assert.Equal(t, 100, f.ledger.remaining["ga"])
}

func TestCheckoutInsertFailureReleasesQuota(t *testing.T) {
	f := setupCheckout()
	f.verifier.authorized["pi_1"] = twoGATotal
	f.writer.err = errors.New("datastore down")

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 2, UnitPrice: decimal.NewFromInt(50)})
	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	assert.Error(t, err)

	assert.Equal(t, 100, f.ledger.remaining["ga"])
	assert.Empty(t, f.cleaner.cleared)
	assert.Empty(t, f.events.issued)
}

func TestCheckoutRePricesFromCurrentCategoryState(t *testing.T) {
	f := setupCheckout()

	// The category price rose after the cart snapshot; the authorized
	// amount must match the server-side re-price, not the snapshot.
	f.svc.Categories.(*mockCategories).categories["ga"].Price = decimal.NewFromInt(60)

	// 2 x 60: subtotal 120, service fee 6, processing fee 3.95.
	f.verifier.authorized["pi_1"] = decimal.RequireFromString("129.95")

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 2, UnitPrice: decimal.NewFromInt(50)})
	tickets, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	require.NoError(t, err)

	assert.True(t, f.verifier.lastAsked.Equal(decimal.RequireFromString("129.95")))
	for _, tk := range tickets {
		assert.True(t, tk.PricePaid.Equal(decimal.NewFromInt(60)))
	}
}

func TestCheckoutQuotaConservedThroughFailureAndCancel(t *testing.T) {
	f := setupCheckout()
	ctx := context.Background()

	// Capacity 2: one buyer takes both units.
	vipTotal := func(qty int64) decimal.Decimal {
		subtotal := decimal.NewFromInt(120 * qty)
		service := subtotal.Mul(decimal.RequireFromString("0.05")).Round(2)
		base := subtotal.Add(service)
		processing := base.Mul(decimal.RequireFromString("0.029")).Add(decimal.RequireFromString("0.30")).Round(2)
		return base.Add(processing)
	}
	f.verifier.authorized["pi_a"] = vipTotal(2)
	f.verifier.authorized["pi_b"] = vipTotal(1)

	crtA := liveCart(models.CartItem{CategoryID: "vip", Quantity: 2, UnitPrice: decimal.NewFromInt(120)})
	ticketsA, err := f.svc.Checkout(ctx, "user-a", crtA, "pi_a")
	require.NoError(t, err)
	require.Len(t, ticketsA, 2)

	// A second buyer is refused while the category is sold out.
	crtB := liveCart(models.CartItem{CategoryID: "vip", Quantity: 1, UnitPrice: decimal.NewFromInt(120)})
	_, err = f.svc.Checkout(ctx, "user-b", crtB, "pi_b")
	assert.True(t, errors.Is(err, apperrors.ErrQuotaExceeded))

	// The first buyer cancels one ticket; its unit frees up and the
	// second buyer's retry succeeds.
	require.NoError(t, f.ledger.Release(ctx, quota.Allocation{CategoryID: "vip", UserID: "user-a", Quantity: 1}))

	crtB = liveCart(models.CartItem{CategoryID: "vip", Quantity: 1, UnitPrice: decimal.NewFromInt(120)})
	ticketsB, err := f.svc.Checkout(ctx, "user-b", crtB, "pi_b")
	require.NoError(t, err)
	assert.Len(t, ticketsB, 1)
	assert.Equal(t, 0, f.ledger.remaining["vip"])
}

func TestCheckoutStalePromoPricesAsAbsent(t *testing.T) {
	f := setupCheckout()
	f.svc.Promos = stalePromoValidator{}

	// Promo no longer valid: the charge is the undiscounted total.
	f.verifier.authorized["pi_1"] = twoGATotal

	crt := liveCart(models.CartItem{CategoryID: "ga", Quantity: 2, UnitPrice: decimal.NewFromInt(50)})
	crt.Promo = &models.AppliedPromo{
		Code:          "EXPIRED",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
	}

	_, err := f.svc.Checkout(context.Background(), "user-1", crt, "pi_1")
	require.NoError(t, err)
	assert.True(t, f.verifier.lastAsked.Equal(twoGATotal))
}

type stalePromoValidator struct{}

func (stalePromoValidator) Validate(context.Context, string, string, decimal.Decimal) (*models.PromoCode, error) {
	return nil, apperrors.ErrPromoNotApplicable
}
