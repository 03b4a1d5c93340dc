package postgres

import (
	"context"
	"fmt"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

// FillStore implements storage.FillStore using PostgreSQL. Execution
// order is preserved through an explicit per-run sequence column.
type FillStore struct {
	pool *Pool
}

// NewFillStore creates a new FillStore.
func NewFillStore(pool *Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

// InsertBulk appends a run's fills atomically, preserving execution
// order. Fails the entire batch on any duplicate (run_id, fill_id).
func (s *FillStore) InsertBulk(ctx context.Context, runID string, fills []*domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(fills) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO fills (
			run_id, seq, fill_id, order_id, ts, symbol, side, quantity,
			raw_price, price, slippage_bps, commission, realized_pnl, eod_square_off
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14
		)
	`

	for i, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			runID, i, f.FillID, f.OrderID, f.Timestamp, f.Symbol, string(f.Side), f.Quantity,
			f.RawPrice, f.Price, f.SlippageBps, f.Commission, f.RealizedPnL, f.EODSquareOff,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert fill in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all fills for a run in execution order.
func (s *FillStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Fill, error) {
	query := `
		SELECT
			fill_id, order_id, ts, symbol, side, quantity,
			raw_price, price, slippage_bps, commission, realized_pnl, eod_square_off
		FROM fills
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get fills by run id: %w", err)
	}
	defer rows.Close()

	var fills []*domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string

		err := rows.Scan(
			&f.FillID, &f.OrderID, &f.Timestamp, &f.Symbol, &side, &f.Quantity,
			&f.RawPrice, &f.Price, &f.SlippageBps, &f.Commission, &f.RealizedPnL, &f.EODSquareOff,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}

		f.Side = domain.OrderSide(side)
		fills = append(fills, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}

	return fills, nil
}
