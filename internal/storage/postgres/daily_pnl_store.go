package postgres

import (
	"context"
	"fmt"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

// DailyPnLStore implements storage.DailyPnLStore using PostgreSQL.
type DailyPnLStore struct {
	pool *Pool
}

// NewDailyPnLStore creates a new DailyPnLStore.
func NewDailyPnLStore(pool *Pool) *DailyPnLStore {
	return &DailyPnLStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyPnLStore = (*DailyPnLStore)(nil)

// InsertBulk appends a run's daily records atomically. Fails the entire
// batch on any duplicate (run_id, date).
func (s *DailyPnLStore) InsertBulk(ctx context.Context, runID string, records []*domain.DailyPnL) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_pnl (
			run_id, date, starting_equity, ending_equity,
			realized_pnl, unrealized_pnl, commission, num_fills
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, d := range records {
		if d == nil || d.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			runID, d.Date, d.StartingEquity, d.EndingEquity,
			d.RealizedPnL, d.UnrealizedPnL, d.Commission, d.NumFills,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert daily pnl in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all daily records for a run, ordered by date ASC.
func (s *DailyPnLStore) GetByRunID(ctx context.Context, runID string) ([]*domain.DailyPnL, error) {
	query := `
		SELECT date, starting_equity, ending_equity,
			realized_pnl, unrealized_pnl, commission, num_fills
		FROM daily_pnl
		WHERE run_id = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get daily pnl by run id: %w", err)
	}
	defer rows.Close()

	var records []*domain.DailyPnL
	for rows.Next() {
		var d domain.DailyPnL

		err := rows.Scan(
			&d.Date, &d.StartingEquity, &d.EndingEquity,
			&d.RealizedPnL, &d.UnrealizedPnL, &d.Commission, &d.NumFills,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily pnl row: %w", err)
		}

		records = append(records, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily pnl rows: %w", err)
	}

	return records, nil
}
