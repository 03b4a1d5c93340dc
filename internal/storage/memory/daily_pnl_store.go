package memory

import (
	"context"
	"sort"
	"sync"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

// DailyPnLStore is an in-memory implementation of storage.DailyPnLStore.
type DailyPnLStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.DailyPnL // keyed by run_id
}

// NewDailyPnLStore creates a new in-memory daily PnL store.
func NewDailyPnLStore() *DailyPnLStore {
	return &DailyPnLStore{
		data: make(map[string][]*domain.DailyPnL),
	}
}

var _ storage.DailyPnLStore = (*DailyPnLStore)(nil)

// InsertBulk appends a run's daily records atomically. Fails the entire
// batch on any duplicate (run_id, date).
func (s *DailyPnLStore) InsertBulk(_ context.Context, runID string, records []*domain.DailyPnL) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[int64]struct{}, len(s.data[runID]))
	for _, d := range s.data[runID] {
		existing[d.Date.Unix()] = struct{}{}
	}

	batchKeys := make(map[int64]struct{}, len(records))
	for _, d := range records {
		if d == nil || d.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := d.Date.Unix()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, d := range records {
		copy := *d
		s.data[runID] = append(s.data[runID], &copy)
	}

	return nil
}

// GetByRunID retrieves all daily records for a run, ordered by date ASC.
func (s *DailyPnLStore) GetByRunID(_ context.Context, runID string) ([]*domain.DailyPnL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[runID]
	result := make([]*domain.DailyPnL, 0, len(stored))
	for _, d := range stored {
		copy := *d
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}
