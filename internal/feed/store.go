package feed

import (
	"context"
	"fmt"
	"time"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

// FromBarStore materializes a feed from a bar store. The whole range is
// loaded up front so the run never blocks on the database mid-stream.
func FromBarStore(ctx context.Context, store storage.BarStore, symbol string, start, end time.Time) (*SliceFeed, error) {
	stored, err := store.GetBySymbolRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", symbol, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("no bars for %s in [%s, %s]",
			symbol, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	bars := make([]domain.Bar, 0, len(stored))
	for _, b := range stored {
		bars = append(bars, *b)
	}
	return NewSliceFeed(bars)
}
