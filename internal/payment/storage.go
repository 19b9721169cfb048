package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/models"
)

// Store keeps the payment confirmations received on the webhook feed.
type Store struct {
	Bun *bun.DB
}

func (s *Store) RecordEvent(ctx context.Context, ev models.PaymentEvent) error {
	_, err := s.Bun.NewInsert().
		Model(&ev).
		On("CONFLICT (intent_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("amount_cents = EXCLUDED.amount_cents").
		Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, intentID string) (*models.PaymentEvent, error) {
	var ev models.PaymentEvent
	err := s.Bun.NewSelect().
		Model(&ev).
		Where("intent_id = ?", intentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment intent %s: %w", intentID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
