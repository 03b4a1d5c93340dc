// Package storage defines the persistence interfaces for backtest
// results and historical bar data. All result stores are append-only:
// a run's output is written once under its deterministic run ID and
// never updated, so replaying a run is a no-op at the storage layer.
package storage

import (
	"context"
	"time"

	"daywise-backtester/internal/domain"
)

// RunStore provides access to run metadata storage.
type RunStore interface {
	// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetAll retrieves all runs, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.RunRecord, error)
}

// FillStore provides access to the per-run fill log.
type FillStore interface {
	// InsertBulk appends a run's fills atomically, preserving execution
	// order. Fails the entire batch on any duplicate (run_id, fill_id).
	InsertBulk(ctx context.Context, runID string, fills []*domain.Fill) error

	// GetByRunID retrieves all fills for a run in execution order.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Fill, error)
}

// DailyPnLStore provides access to per-run end-of-day rollups.
type DailyPnLStore interface {
	// InsertBulk appends a run's daily records atomically. Fails the
	// entire batch on any duplicate (run_id, date).
	InsertBulk(ctx context.Context, runID string, records []*domain.DailyPnL) error

	// GetByRunID retrieves all daily records for a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.DailyPnL, error)
}

// BarStore provides access to historical OHLCV bars.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate
	// (symbol, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbolRange retrieves bars for a symbol within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetBySymbolRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error)
}
