package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/models"
)

// Service owns promo-code storage and validation. The validation
// contract (code + festival + subtotal in, discount shape out) is what
// the cart consumes.
type Service struct {
	Bun *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{Bun: db}
}

// Validate looks a code up for a festival and checks it against the
// cart subtotal. Rule rejections come back as ErrPromoNotApplicable
// with the reason wrapped in.
func (s *Service) Validate(ctx context.Context, code, festivalID string, subtotal decimal.Decimal) (*models.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("promo code is required: %w", apperrors.ErrValidation)
	}

	var p models.PromoCode
	err := s.Bun.NewSelect().
		Model(&p).
		Where("code = ?", code).
		Where("festival_id = ?", festivalID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("promo code %s: %w", code, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if !p.Active {
		return nil, fmt.Errorf("promo code %s is inactive: %w", code, apperrors.ErrPromoNotApplicable)
	}
	if p.MinPurchase != nil && subtotal.LessThan(*p.MinPurchase) {
		return nil, fmt.Errorf("subtotal below minimum purchase of %s: %w",
			p.MinPurchase.StringFixed(2), apperrors.ErrPromoNotApplicable)
	}

	switch p.DiscountType {
	case models.DiscountPercentage, models.DiscountFixed:
	default:
		return nil, fmt.Errorf("promo code %s has unknown discount type %q: %w",
			code, p.DiscountType, apperrors.ErrValidation)
	}

	return &p, nil
}

// Create stores a promo code. Admin surface, used by seeds and tests.
func (s *Service) Create(ctx context.Context, p *models.PromoCode) error {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	_, err := s.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}
