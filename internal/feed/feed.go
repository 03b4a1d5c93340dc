// Package feed supplies ordered bars to the engine. Feeds are fully
// materialized before a run starts: no bar arrives late, and the same
// feed always yields the same sequence.
package feed

import (
	"context"
	"errors"
	"fmt"

	"daywise-backtester/internal/domain"
)

// ErrExhausted is returned by Next once the feed has no more bars.
var ErrExhausted = errors.New("feed exhausted")

// Feed yields bars in strictly increasing timestamp order.
type Feed interface {
	// Next returns the next bar. It returns ErrExhausted when the feed
	// is empty and a wrapped context error if ctx is done.
	Next(ctx context.Context) (*domain.Bar, error)
}

// SliceFeed serves bars from an in-memory slice. The slice is ordered
// and validated at construction, so Next never observes a bad bar.
type SliceFeed struct {
	bars []domain.Bar
	pos  int
}

var _ Feed = (*SliceFeed)(nil)

// NewSliceFeed validates ordering and bar contents up front. A single
// out-of-order or malformed bar rejects the whole feed.
func NewSliceFeed(bars []domain.Bar) (*SliceFeed, error) {
	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("bar %d at %s does not advance past bar %d at %s",
				i, bars[i].Timestamp, i-1, bars[i-1].Timestamp)
		}
	}
	return &SliceFeed{bars: bars}, nil
}

// Next implements Feed.
func (f *SliceFeed) Next(ctx context.Context) (*domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	if f.pos >= len(f.bars) {
		return nil, ErrExhausted
	}
	b := f.bars[f.pos]
	f.pos++
	return &b, nil
}

// Len returns the total number of bars in the feed.
func (f *SliceFeed) Len() int {
	return len(f.bars)
}

// Bars returns a copy of the feed's bars in feed order.
func (f *SliceFeed) Bars() []domain.Bar {
	out := make([]domain.Bar, len(f.bars))
	copy(out, f.bars)
	return out
}

// Reset rewinds the feed to the first bar. Used by the verifier to
// replay the identical sequence.
func (f *SliceFeed) Reset() {
	f.pos = 0
}
