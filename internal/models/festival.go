package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Festival struct {
	bun.BaseModel `bun:"table:festivals"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name" json:"name"`
	StartDate time.Time `bun:"start_date" json:"startDate"`
	EndDate   time.Time `bun:"end_date" json:"endDate"`
}

// Started reports whether the festival has begun; cancellations are
// rejected from this point on.
func (f *Festival) Started(now time.Time) bool {
	return !now.Before(f.StartDate)
}

// CategoryPurchase tracks how many units of a category a user has
// bought, for the per-user cap. Updated in the same transaction as the
// category sold count.
type CategoryPurchase struct {
	bun.BaseModel `bun:"table:category_purchases"`

	CategoryID string `bun:"category_id,pk"`
	UserID     string `bun:"user_id,pk"`
	Quantity   int    `bun:"quantity"`
}
