package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"festival-ticketing/internal/apperrors"
	"festival-ticketing/internal/models"
)

func setupTestDB(t *testing.T) *Service {
	// In-memory SQLite. A single pooled connection keeps every test
	// statement on the same database and serializes concurrent writers.
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.TicketCategory)(nil),
		(*models.CategoryPurchase)(nil),
		(*models.Festival)(nil),
	} {
		if err := bunDB.ResetModel(ctx, model); err != nil {
			t.Fatalf("failed to create tables: %v", err)
		}
	}

	return NewService(&DB{Bun: bunDB})
}

func seedCategory(t *testing.T, svc *Service, id string, quota, maxPerUser int) {
	t.Helper()
	cat := &models.TicketCategory{
		ID:         id,
		FestivalID: "fest-1",
		Name:       id,
		Type:       models.CategoryGeneral,
		Price:      decimal.NewFromInt(50),
		Currency:   "eur",
		Quota:      quota,
		MaxPerUser: maxPerUser,
		SaleStart:  time.Now().Add(-time.Hour),
		SaleEnd:    time.Now().Add(time.Hour),
		IsActive:   true,
	}
	_, err := svc.DB.Bun.NewInsert().Model(cat).Exec(context.Background())
	require.NoError(t, err)
}

func TestReserveAndReleaseConserveQuota(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 10, 0)
	ctx := context.Background()

	alloc, err := svc.Reserve(ctx, "ga", "user-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, alloc.Quantity)

	remaining, err := svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	require.NoError(t, svc.Release(ctx, alloc))

	remaining, err = svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}

func TestReserveNeverOversellsSequentially(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 5, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Reserve(ctx, "ga", fmt.Sprintf("user-%d", i), 1)
		require.NoError(t, err)
	}

	_, err := svc.Reserve(ctx, "ga", "late-user", 1)
	assert.True(t, errors.Is(err, apperrors.ErrQuotaExceeded))

	remaining, err := svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestReserveNeverOversellsConcurrently(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 10, 0)
	ctx := context.Background()

	const buyers = 25
	var wg sync.WaitGroup
	results := make(chan error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, "ga", fmt.Sprintf("user-%d", n), 1)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected reservation error: %v", err)
		}
	}

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, buyers-10, rejected)

	remaining, err := svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestReserveBatchLargerThanRemainingRejectedWhole(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 3, 0)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "ga", "user-1", 2)
	require.NoError(t, err)

	// 2 requested, 1 left: all-or-nothing.
	_, err = svc.Reserve(ctx, "ga", "user-2", 2)
	assert.True(t, errors.Is(err, apperrors.ErrQuotaExceeded))

	remaining, err := svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestReserveEnforcesPerUserCap(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "vip", 100, 2)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "vip", "user-1", 2)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, "vip", "user-1", 1)
	assert.True(t, errors.Is(err, apperrors.ErrMaxPerUserExceeded))

	// The whole transaction rolled back: no quota was consumed by the
	// rejected attempt, and other users are unaffected.
	remaining, err := svc.Remaining(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, 98, remaining)

	_, err = svc.Reserve(ctx, "vip", "user-2", 2)
	require.NoError(t, err)
}

func TestReleaseRestoresPerUserHeadroom(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "vip", 100, 2)
	ctx := context.Background()

	alloc, err := svc.Reserve(ctx, "vip", "user-1", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, Allocation{
		CategoryID: alloc.CategoryID,
		UserID:     alloc.UserID,
		Quantity:   1,
	}))

	_, err = svc.Reserve(ctx, "vip", "user-1", 1)
	require.NoError(t, err)
}

func TestReserveOutsideSaleWindow(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 10, 0)
	ctx := context.Background()

	// Before the window opens.
	svc.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	_, err := svc.Reserve(ctx, "ga", "user-1", 1)
	assert.True(t, errors.Is(err, apperrors.ErrSaleWindowClosed))

	// After it closes. The boundary is exclusive.
	svc.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Reserve(ctx, "ga", "user-1", 1)
	assert.True(t, errors.Is(err, apperrors.ErrSaleWindowClosed))

	remaining, err := svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}

func TestReserveInactiveCategory(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 10, 0)
	ctx := context.Background()

	_, err := svc.DB.Bun.NewUpdate().
		Model((*models.TicketCategory)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", "ga").
		Exec(ctx)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, "ga", "user-1", 1)
	assert.True(t, errors.Is(err, apperrors.ErrSaleWindowClosed))
}

func TestReserveUnknownCategory(t *testing.T) {
	svc := setupTestDB(t)

	_, err := svc.Reserve(context.Background(), "missing", "user-1", 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 10, 0)

	_, err := svc.Reserve(context.Background(), "ga", "user-1", 0)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.Reserve(context.Background(), "ga", "user-1", -3)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestReleaseNeverUnderflows(t *testing.T) {
	svc := setupTestDB(t)
	seedCategory(t, svc, "ga", 10, 0)
	ctx := context.Background()

	alloc, err := svc.Reserve(ctx, "ga", "user-1", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, alloc))

	// Releasing again would push sold_count below zero.
	err = svc.Release(ctx, alloc)
	assert.Error(t, err)

	remaining, err := svc.Remaining(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 10, remaining)
}
