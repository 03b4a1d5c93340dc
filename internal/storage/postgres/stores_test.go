package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
	"daywise-backtester/internal/storage/postgres"
)

func createTestRun(runID string) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:          runID,
		Strategy:       "ma_cross",
		Symbol:         "RELIANCE",
		StartDate:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		ConfigDigest:   "digest-1",
		InitialCapital: 100000,
		FinalEquity:    101500,
		TotalReturn:    0.015,
		CreatedAt:      time.Date(2024, 3, 8, 16, 0, 0, 0, time.UTC),
	}
}

func createTestFill(fillID string, seq int) *domain.Fill {
	return &domain.Fill{
		FillID:      fillID,
		OrderID:     "order-" + fillID,
		Timestamp:   time.Date(2024, 3, 4, 9, 15+seq, 0, 0, time.UTC),
		Symbol:      "RELIANCE",
		Side:        domain.OrderSideBuy,
		Quantity:    99,
		RawPrice:    100.00,
		Price:       100.05,
		SlippageBps: 5,
		Commission:  9.90495,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRunStore(pool)

	run := createTestRun("run-001")
	require.NoError(t, store.Insert(ctx, run))

	retrieved, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, run.RunID, retrieved.RunID)
	assert.Equal(t, run.Strategy, retrieved.Strategy)
	assert.Equal(t, run.Symbol, retrieved.Symbol)
	assert.Equal(t, run.ConfigDigest, retrieved.ConfigDigest)
	assert.InDelta(t, run.InitialCapital, retrieved.InitialCapital, 0.0001)
	assert.InDelta(t, run.FinalEquity, retrieved.FinalEquity, 0.0001)
	assert.InDelta(t, run.TotalReturn, retrieved.TotalReturn, 1e-9)
	assert.True(t, run.StartDate.Equal(retrieved.StartDate))
	assert.True(t, run.CreatedAt.Equal(retrieved.CreatedAt))
}

func TestRunStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRunStore(pool)

	require.NoError(t, store.Insert(ctx, createTestRun("run-001")))

	err := store.Insert(ctx, createTestRun("run-001"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_GetAllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRunStore(pool)

	early := createTestRun("run-early")
	late := createTestRun("run-late")
	late.CreatedAt = early.CreatedAt.Add(time.Hour)

	require.NoError(t, store.Insert(ctx, late))
	require.NoError(t, store.Insert(ctx, early))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-early", all[0].RunID)
	assert.Equal(t, "run-late", all[1].RunID)
}

func TestFillStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewFillStore(pool)

	fills := []*domain.Fill{
		createTestFill("fill-b", 0),
		createTestFill("fill-a", 1),
		createTestFill("fill-c", 2),
	}
	fills[2].Side = domain.OrderSideSell
	fills[2].RealizedPnL = 94.05
	fills[2].EODSquareOff = true

	require.NoError(t, store.InsertBulk(ctx, "run-001", fills))

	retrieved, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	require.Len(t, retrieved, 3)

	// Execution order, not fill ID order.
	assert.Equal(t, "fill-b", retrieved[0].FillID)
	assert.Equal(t, "fill-a", retrieved[1].FillID)
	assert.Equal(t, "fill-c", retrieved[2].FillID)

	assert.Equal(t, domain.OrderSideSell, retrieved[2].Side)
	assert.True(t, retrieved[2].EODSquareOff)
	assert.InDelta(t, 94.05, retrieved[2].RealizedPnL, 1e-9)
	assert.InDelta(t, 100.05, retrieved[0].Price, 1e-9)
	assert.Equal(t, int64(99), retrieved[0].Quantity)
}

func TestFillStore_DuplicateRollsBackBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewFillStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "run-001", []*domain.Fill{createTestFill("fill-a", 0)}))

	err := store.InsertBulk(ctx, "run-001", []*domain.Fill{
		createTestFill("fill-b", 1),
		createTestFill("fill-a", 2),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	retrieved, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	assert.Len(t, retrieved, 1, "failed batch must not insert partial data")
}

func TestFillStore_SameFillDifferentRuns(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewFillStore(pool)

	require.NoError(t, store.InsertBulk(ctx, "run-001", []*domain.Fill{createTestFill("fill-a", 0)}))
	require.NoError(t, store.InsertBulk(ctx, "run-002", []*domain.Fill{createTestFill("fill-a", 0)}))
}

func TestDailyPnLStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewDailyPnLStore(pool)

	d1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	records := []*domain.DailyPnL{
		{Date: d2, StartingEquity: 100500, EndingEquity: 101000, RealizedPnL: 500, NumFills: 4},
		{Date: d1, StartingEquity: 100000, EndingEquity: 100500, RealizedPnL: 510, Commission: 10, NumFills: 2},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-001", records))

	retrieved, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	require.Len(t, retrieved, 2)

	assert.True(t, retrieved[0].Date.Equal(d1), "records must come back date ordered")
	assert.InDelta(t, 100500.0, retrieved[0].EndingEquity, 0.0001)
	assert.InDelta(t, 10.0, retrieved[0].Commission, 0.0001)
	assert.Equal(t, 2, retrieved[0].NumFills)
}

func TestDailyPnLStore_DuplicateDate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewDailyPnLStore(pool)

	d := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, "run-001", []*domain.DailyPnL{{Date: d}}))

	err := store.InsertBulk(ctx, "run-001", []*domain.DailyPnL{{Date: d}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
