package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/money"
)

// Verifier answers one question for checkout: is this payment intent
// confirmed for exactly this amount. It prefers the webhook-recorded
// confirmation and falls back to asking Stripe directly when the
// webhook has not arrived yet.
type Verifier struct {
	Store  *Store
	Client *client.API
	Log    *logger.Logger
}

func NewVerifier(store *Store, stripeKey string, log *logger.Logger) *Verifier {
	v := &Verifier{Store: store, Log: log}
	if stripeKey != "" {
		v.Client = client.New(stripeKey, nil)
	}
	return v
}

func (v *Verifier) VerifyAuthorized(ctx context.Context, intentID string, amount decimal.Decimal, currency string) error {
	if intentID == "" {
		return fmt.Errorf("payment intent id is required: %w", apperrors.ErrValidation)
	}

	if ev, err := v.Store.GetEvent(ctx, intentID); err == nil {
		return check(ev.Status, ev.AmountCents, ev.Currency, amount, currency)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	if v.Client == nil {
		return fmt.Errorf("payment intent %s: %w", intentID, apperrors.ErrPaymentNotConfirmed)
	}

	intent, err := v.Client.PaymentIntents.Get(intentID, nil)
	if err != nil {
		v.Log.Error("PAYMENT", fmt.Sprintf("stripe retrieve intent %s: %v", intentID, err))
		return fmt.Errorf("payment intent %s: %w", intentID, apperrors.ErrPaymentNotConfirmed)
	}
	return check(string(intent.Status), intent.Amount, string(intent.Currency), amount, currency)
}

func check(status string, amountCents int64, gotCurrency string, want decimal.Decimal, wantCurrency string) error {
	switch stripe.PaymentIntentStatus(status) {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusRequiresCapture:
	default:
		return fmt.Errorf("payment intent status %s: %w", status, apperrors.ErrPaymentNotConfirmed)
	}
	if !strings.EqualFold(gotCurrency, wantCurrency) {
		return fmt.Errorf("authorized currency %s, priced %s: %w", gotCurrency, wantCurrency, apperrors.ErrPriceMismatch)
	}
	if amountCents != money.ToCents(want) {
		return fmt.Errorf("authorized %d, priced %d: %w", amountCents, money.ToCents(want), apperrors.ErrPriceMismatch)
	}
	return nil
}
