package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Bar // keyed by symbol
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string][]*domain.Bar),
	}
}

var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate
// (symbol, timestamp).
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		symbol string
		ts     int64
	}
	batchKeys := make(map[key]struct{}, len(bars))

	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, b.Timestamp.UnixNano()}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}

		for _, existing := range s.data[b.Symbol] {
			if existing.Timestamp.Equal(b.Timestamp) {
				return storage.ErrDuplicateKey
			}
		}
	}

	for _, b := range bars {
		copy := *b
		s.data[b.Symbol] = append(s.data[b.Symbol], &copy)
	}
	for sym := range s.data {
		sort.Slice(s.data[sym], func(i, j int) bool {
			return s.data[sym][i].Timestamp.Before(s.data[sym][j].Timestamp)
		})
	}

	return nil
}

// GetBySymbolRange retrieves bars for a symbol within [start, end]
// (inclusive), ordered by timestamp ASC.
func (s *BarStore) GetBySymbolRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data[symbol] {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		copy := *b
		result = append(result, &copy)
	}

	return result, nil
}
