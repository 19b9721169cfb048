package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/cart"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/models"
	"festival-ticketing/internal/quota"
)

type QuotaLedger interface {
	Reserve(ctx context.Context, categoryID, userID string, qty int) (quota.Allocation, error)
	Release(ctx context.Context, alloc quota.Allocation) error
}

type CategoryReader interface {
	GetCategory(ctx context.Context, id string) (*models.TicketCategory, error)
}

type TicketWriter interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
}

type TokenIssuer interface {
	NewToken(ticketID string) (string, error)
}

type PaymentVerifier interface {
	// VerifyAuthorized confirms the payment intent is confirmed and was
	// authorized for exactly the given amount.
	VerifyAuthorized(ctx context.Context, intentID string, amount decimal.Decimal, currency string) error
}

type CartCleaner interface {
	Clear(ctx context.Context, userID string) error
}

type PromoValidator interface {
	Validate(ctx context.Context, code, festivalID string, subtotal decimal.Decimal) (*models.PromoCode, error)
}

type EventPublisher interface {
	PublishTicketsIssued(tickets []models.Ticket) error
}

// Service turns a cart into tickets. Everything between the first
// reservation and the final insert is guarded by compensation: any
// failure releases every allocation taken so far, so a checkout either
// lands whole or leaves no trace.
type Service struct {
	Quota      QuotaLedger
	Categories CategoryReader
	Tickets    TicketWriter
	Tokens     TokenIssuer
	Payments   PaymentVerifier
	Carts      CartCleaner
	Promos     PromoValidator
	Events     EventPublisher
	Logger     *logger.Logger

	Now func() time.Time
}

// Checkout validates the cart, reserves inventory for every line item,
// re-prices server-side against current category prices, verifies the
// payment authorization matches, then materializes one SOLD ticket per
// unit and clears the cart.
func (s *Service) Checkout(ctx context.Context, userID string, crt *models.Cart, paymentIntentID string) ([]models.Ticket, error) {
	now := s.Now()
	if crt == nil || crt.IsEmpty() {
		return nil, fmt.Errorf("cart is empty: %w", apperrors.ErrValidation)
	}
	if crt.Expired(now) {
		return nil, fmt.Errorf("%w", apperrors.ErrCartExpired)
	}

	// Reserve every line item; the first failure unwinds the rest.
	var taken []quota.Allocation
	rollback := func() {
		for _, alloc := range taken {
			if err := s.Quota.Release(ctx, alloc); err != nil {
				s.Logger.Error("QUOTA", fmt.Sprintf("rollback release %s x%d failed: %v",
					alloc.CategoryID, alloc.Quantity, err))
			}
		}
	}

	for _, it := range crt.Items {
		alloc, err := s.Quota.Reserve(ctx, it.CategoryID, userID, it.Quantity)
		if err != nil {
			rollback()
			return nil, err
		}
		taken = append(taken, alloc)
	}

	tickets, total, currency, err := s.materialize(ctx, userID, crt, now)
	if err != nil {
		rollback()
		return nil, err
	}

	// Never trust the client's total: compare the server-derived price
	// with what the payment provider actually authorized.
	if err := s.Payments.VerifyAuthorized(ctx, paymentIntentID, total, currency); err != nil {
		rollback()
		return nil, err
	}

	if err := s.Tickets.CreateTickets(ctx, tickets); err != nil {
		rollback()
		return nil, fmt.Errorf("create tickets: %w", err)
	}

	if err := s.Carts.Clear(ctx, userID); err != nil {
		s.Logger.Warn("CART", fmt.Sprintf("failed to clear cart for %s after checkout: %v", userID, err))
	}
	if s.Events != nil {
		if err := s.Events.PublishTicketsIssued(tickets); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish tickets issued for %s: %v", userID, err))
		}
	}

	s.Logger.LogCheckout(userID, fmt.Sprintf("%d tickets issued, total %s %s",
		len(tickets), total.StringFixed(2), currency))
	return tickets, nil
}

// materialize re-prices the cart from current category state and builds
// one SOLD ticket per purchased unit. Prices are frozen on the ticket
// at this moment; later category price changes do not touch them.
func (s *Service) materialize(ctx context.Context, userID string, crt *models.Cart, now time.Time) ([]models.Ticket, decimal.Decimal, string, error) {
	repriced := make([]models.CartItem, 0, len(crt.Items))
	currency := ""

	var tickets []models.Ticket
	for _, it := range crt.Items {
		cat, err := s.Categories.GetCategory(ctx, it.CategoryID)
		if err != nil {
			return nil, decimal.Zero, "", err
		}
		// A cart quotes exactly one festival; a line item from another
		// festival invalidates the whole purchase.
		if cat.FestivalID != crt.FestivalID {
			return nil, decimal.Zero, "", fmt.Errorf("category %s belongs to festival %s, cart is for %s: %w",
				it.CategoryID, cat.FestivalID, crt.FestivalID, apperrors.ErrValidation)
		}
		if currency == "" {
			currency = cat.Currency
		}
		repriced = append(repriced, models.CartItem{
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  cat.Price,
		})

		for i := 0; i < it.Quantity; i++ {
			id := uuid.NewString()
			token, err := s.Tokens.NewToken(id)
			if err != nil {
				return nil, decimal.Zero, "", err
			}
			tickets = append(tickets, models.Ticket{
				ID:           id,
				CategoryID:   cat.ID,
				CategoryType: cat.Type,
				FestivalID:   cat.FestivalID,
				OwnerID:      userID,
				QRToken:      token,
				Status:       models.TicketSold,
				PricePaid:    cat.Price,
				Currency:     cat.Currency,
				IssuedAt:     now,
			})
		}
	}

	// Re-validate the promo against the fresh subtotal; a code that no
	// longer applies simply prices as if absent.
	promo := crt.Promo
	if promo != nil && s.Promos != nil {
		subtotal := cart.Price(repriced, nil).Subtotal
		p, err := s.Promos.Validate(ctx, promo.Code, crt.FestivalID, subtotal)
		if err != nil {
			promo = nil
		} else {
			promo = p.Applied()
		}
	}

	breakdown := cart.Price(repriced, promo)
	return tickets, breakdown.Total, currency, nil
}
