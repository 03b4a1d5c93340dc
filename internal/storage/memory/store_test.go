package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunRecord{
		RunID:          "run1",
		Strategy:       "ma_cross",
		Symbol:         "RELIANCE",
		InitialCapital: 100000,
		FinalEquity:    101500,
		TotalReturn:    0.015,
		CreatedAt:      time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC),
	}

	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.FinalEquity != 101500 {
		t.Errorf("FinalEquity mismatch: got %f, want %f", got.FinalEquity, 101500.0)
	}
}

func TestRunStore_DuplicateKey(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunRecord{RunID: "run1", Strategy: "buy_hold", Symbol: "TCS"}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, run)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunStore_NotFound(t *testing.T) {
	store := NewRunStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_GetAllOrdered(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)
	runs := []*domain.RunRecord{
		{RunID: "run-c", CreatedAt: base.Add(2 * time.Hour)},
		{RunID: "run-a", CreatedAt: base},
		{RunID: "run-b", CreatedAt: base.Add(time.Hour)},
	}
	for _, r := range runs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	for i, want := range []string{"run-a", "run-b", "run-c"} {
		if all[i].RunID != want {
			t.Errorf("run %d = %s, want %s", i, all[i].RunID, want)
		}
	}
}

func TestFillStore_PreservesExecutionOrder(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()

	fills := []*domain.Fill{
		{FillID: "f3", Symbol: "RELIANCE", Quantity: 10},
		{FillID: "f1", Symbol: "RELIANCE", Quantity: 20},
		{FillID: "f2", Symbol: "RELIANCE", Quantity: 30},
	}
	if err := store.InsertBulk(ctx, "run1", fills); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d fills, want 3", len(got))
	}
	// Insertion order is execution order, not fill ID order.
	for i, want := range []string{"f3", "f1", "f2"} {
		if got[i].FillID != want {
			t.Errorf("fill %d = %s, want %s", i, got[i].FillID, want)
		}
	}
}

func TestFillStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "run1", []*domain.Fill{{FillID: "f1"}}); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	err := store.InsertBulk(ctx, "run1", []*domain.Fill{{FillID: "f2"}, {FillID: "f1"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run1")
	if len(got) != 1 {
		t.Errorf("failed batch should insert nothing, store has %d fills", len(got))
	}
}

func TestFillStore_SameFillDifferentRuns(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "run1", []*domain.Fill{{FillID: "f1"}}); err != nil {
		t.Fatalf("run1 insert failed: %v", err)
	}
	if err := store.InsertBulk(ctx, "run2", []*domain.Fill{{FillID: "f1"}}); err != nil {
		t.Errorf("same fill id under a different run should insert: %v", err)
	}
}

func TestFillStore_ReturnsCopies(t *testing.T) {
	store := NewFillStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "run1", []*domain.Fill{{FillID: "f1", Quantity: 10}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run1")
	got[0].Quantity = 999

	again, _ := store.GetByRunID(ctx, "run1")
	if again[0].Quantity != 10 {
		t.Error("mutating a returned fill altered stored data")
	}
}

func TestDailyPnLStore_OrderedByDate(t *testing.T) {
	store := NewDailyPnLStore()
	ctx := context.Background()

	d1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	records := []*domain.DailyPnL{
		{Date: d2, EndingEquity: 101000},
		{Date: d1, EndingEquity: 100500},
	}
	if err := store.InsertBulk(ctx, "run1", records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if !got[0].Date.Equal(d1) || !got[1].Date.Equal(d2) {
		t.Error("records not ordered by date")
	}
}

func TestDailyPnLStore_DuplicateDate(t *testing.T) {
	store := NewDailyPnLStore()
	ctx := context.Background()

	d := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if err := store.InsertBulk(ctx, "run1", []*domain.DailyPnL{{Date: d}}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "run1", []*domain.DailyPnL{{Date: d}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBarStore_RangeInclusive(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	var bars []*domain.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, &domain.Bar{
			Symbol:    "RELIANCE",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1000,
		})
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySymbolRange(ctx, "RELIANCE", base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("GetBySymbolRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d bars, want 3 (both endpoints inclusive)", len(got))
	}
}

func TestBarStore_DuplicateTimestamp(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	ts := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	bar := &domain.Bar{Symbol: "RELIANCE", Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100}
	if err := store.InsertBulk(ctx, []*domain.Bar{bar}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Bar{bar})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
