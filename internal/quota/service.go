package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"festival-ticketing/internal/apperrors"
)

// Allocation is proof of a committed reservation. Holding one is the
// only way to release quota, so releases always match a prior reserve.
type Allocation struct {
	CategoryID string
	UserID     string
	Quantity   int
}

type Service struct {
	DB *DB

	// Now is swappable for sale-window tests.
	Now func() time.Time
}

func NewService(db *DB) *Service {
	return &Service{DB: db, Now: time.Now}
}

// Reserve atomically commits qty units of a category to a purchaser.
// There is no separate hold phase: the reservation is the sale as far
// as the ledger is concerned, and checkout failure compensates with
// Release. Business-rule rejections come back as sentinel errors.
func (s *Service) Reserve(ctx context.Context, categoryID, userID string, qty int) (Allocation, error) {
	if qty <= 0 {
		return Allocation{}, fmt.Errorf("quantity must be positive: %w", apperrors.ErrValidation)
	}

	cat, err := s.DB.GetCategory(ctx, categoryID)
	if err != nil {
		return Allocation{}, err
	}
	if !cat.OnSale(s.Now()) {
		return Allocation{}, fmt.Errorf("category %s: %w", categoryID, apperrors.ErrSaleWindowClosed)
	}

	err = s.DB.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.DB.reserveQuota(ctx, tx, categoryID, qty); err != nil {
			return err
		}
		return s.DB.recordUserPurchase(ctx, tx, categoryID, userID, qty, cat.MaxPerUser)
	})
	if err != nil {
		return Allocation{}, err
	}

	return Allocation{CategoryID: categoryID, UserID: userID, Quantity: qty}, nil
}

// Release returns a previously reserved allocation to the pool, e.g.
// when a later checkout step fails or a sold ticket is cancelled.
func (s *Service) Release(ctx context.Context, alloc Allocation) error {
	if alloc.Quantity <= 0 {
		return nil
	}
	return s.DB.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return s.DB.releaseQuota(ctx, tx, alloc.CategoryID, alloc.UserID, alloc.Quantity)
	})
}

// Remaining reports the units still sellable for a category.
func (s *Service) Remaining(ctx context.Context, categoryID string) (int, error) {
	cat, err := s.DB.GetCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	return cat.Available(), nil
}
