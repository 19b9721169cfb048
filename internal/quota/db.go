package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetCategory(ctx context.Context, id string) (*models.TicketCategory, error) {
	var cat models.TicketCategory
	err := d.Bun.NewSelect().
		Model(&cat).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (d *DB) GetFestival(ctx context.Context, id string) (*models.Festival, error) {
	var f models.Festival
	err := d.Bun.NewSelect().
		Model(&f).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("festival %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// reserveQuota takes qty units of a category's quota. The check and the
// increment are one conditional UPDATE so two concurrent reservations
// can never both land when their sum exceeds remaining capacity.
func (d *DB) reserveQuota(ctx context.Context, tx bun.Tx, categoryID string, qty int) error {
	res, err := tx.NewUpdate().
		Model((*models.TicketCategory)(nil)).
		Set("sold_count = sold_count + ?", qty).
		Where("id = ?", categoryID).
		Where("sold_count + ? <= quota", qty).
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", categoryID, apperrors.ErrQuotaExceeded)
	}
	return nil
}

// recordUserPurchase bumps the per-user counter, enforcing maxPerUser
// with the same conditional-update shape. maxPerUser <= 0 means no cap.
func (d *DB) recordUserPurchase(ctx context.Context, tx bun.Tx, categoryID, userID string, qty, maxPerUser int) error {
	_, err := tx.NewInsert().
		Model(&models.CategoryPurchase{CategoryID: categoryID, UserID: userID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	q := tx.NewUpdate().
		Model((*models.CategoryPurchase)(nil)).
		Set("quantity = quantity + ?", qty).
		Where("category_id = ?", categoryID).
		Where("user_id = ?", userID)
	if maxPerUser > 0 {
		q = q.Where("quantity + ? <= ?", qty, maxPerUser)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("category %s user %s: %w", categoryID, userID, apperrors.ErrMaxPerUserExceeded)
	}
	return nil
}

// releaseQuota gives qty units back, never dropping sold_count below 0.
func (d *DB) releaseQuota(ctx context.Context, tx bun.Tx, categoryID, userID string, qty int) error {
	res, err := tx.NewUpdate().
		Model((*models.TicketCategory)(nil)).
		Set("sold_count = sold_count - ?", qty).
		Where("id = ?", categoryID).
		Where("sold_count >= ?", qty).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: release of %d units would underflow sold count", categoryID, qty)
	}

	_, err = tx.NewUpdate().
		Model((*models.CategoryPurchase)(nil)).
		Set("quantity = quantity - ?", qty).
		Where("category_id = ?", categoryID).
		Where("user_id = ?", userID).
		Where("quantity >= ?", qty).
		Exec(ctx)
	return err
}
