package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	err := d.Bun.NewSelect().
		Model(&t).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) GetTicketByQRToken(ctx context.Context, token string) (*models.Ticket, error) {
	var t models.Ticket
	err := d.Bun.NewSelect().
		Model(&t).
		Where("qr_token = ?", token).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("qr token: %w", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) GetTicketsByUser(ctx context.Context, userID, festivalID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := d.Bun.NewSelect().
		Model(&tickets).
		Where("owner_id = ?", userID).
		Order("issued_at DESC")
	if festivalID != "" {
		q = q.Where("festival_id = ?", festivalID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return tickets, nil
}

// MarkUsed flips a ticket SOLD -> USED. Check and write are a single
// conditional UPDATE: of two simultaneous scans only one sees a row
// affected, so a token admits at most once.
func (d *DB) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketUsed).
		Set("used_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.TicketSold).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CancelIfSold flips a ticket SOLD -> CANCELLED with the same
// compare-and-set shape; a USED ticket is never cancellable.
func (d *DB) CancelIfSold(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketCancelled).
		Where("id = ?", id).
		Where("status = ?", models.TicketSold).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
