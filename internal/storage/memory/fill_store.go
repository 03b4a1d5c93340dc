package memory

import (
	"context"
	"sync"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore. Fills
// are held per run in insertion order, which is execution order.
type FillStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Fill // keyed by run_id
	keys map[string]struct{}       // run_id|fill_id
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		data: make(map[string][]*domain.Fill),
		keys: make(map[string]struct{}),
	}
}

var _ storage.FillStore = (*FillStore)(nil)

// InsertBulk appends a run's fills atomically, preserving execution
// order. Fails the entire batch on any duplicate (run_id, fill_id).
func (s *FillStore) InsertBulk(_ context.Context, runID string, fills []*domain.Fill) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(fills) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(fills))

	for _, f := range fills {
		if f == nil || f.FillID == "" {
			return storage.ErrInvalidInput
		}
		key := runID + "|" + f.FillID
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, f := range fills {
		copy := *f
		s.data[runID] = append(s.data[runID], &copy)
		s.keys[runID+"|"+f.FillID] = struct{}{}
	}

	return nil
}

// GetByRunID retrieves all fills for a run in execution order.
func (s *FillStore) GetByRunID(_ context.Context, runID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[runID]
	result := make([]*domain.Fill, 0, len(stored))
	for _, f := range stored {
		copy := *f
		result = append(result, &copy)
	}

	return result, nil
}
