package strategy

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"daywise-backtester/internal/domain"
)

// MACrossStrategy goes long when the fast moving average crosses above
// the slow one and flattens when it crosses back below. Crosses are
// edge events: a signal fires only on the bar where the relationship
// flips, so the strategy never re-enters an already-open direction.
type MACrossStrategy struct {
	fastPeriod int
	slowPeriod int

	closes []float64

	// cross state recomputed by OnBar, read by GenerateSignal
	crossedUp   bool
	crossedDown bool
}

var _ Strategy = (*MACrossStrategy)(nil)

// NewMACrossStrategy builds a moving-average-cross strategy. Periods
// are validated by the factory.
func NewMACrossStrategy(fastPeriod, slowPeriod int) *MACrossStrategy {
	return &MACrossStrategy{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// Name implements Strategy.
func (s *MACrossStrategy) Name() string {
	return fmt.Sprintf("ma_cross_%d_%d", s.fastPeriod, s.slowPeriod)
}

// OnBar appends the close and recomputes the cross state from the last
// two moving-average pairs.
func (s *MACrossStrategy) OnBar(bar *domain.Bar) {
	s.closes = append(s.closes, bar.Close)
	// One extra close beyond the slow period to hold the previous pair.
	if maxLen := s.slowPeriod + 1; len(s.closes) > maxLen {
		s.closes = s.closes[len(s.closes)-maxLen:]
	}

	s.crossedUp = false
	s.crossedDown = false
	if len(s.closes) < s.slowPeriod+1 {
		return
	}

	fast := talib.Sma(s.closes, s.fastPeriod)
	slow := talib.Sma(s.closes, s.slowPeriod)
	n := len(s.closes)

	prevDiff := fast[n-2] - slow[n-2]
	currDiff := fast[n-1] - slow[n-1]

	s.crossedUp = prevDiff <= 0 && currDiff > 0
	s.crossedDown = prevDiff >= 0 && currDiff < 0
}

// GenerateSignal implements Strategy.
func (s *MACrossStrategy) GenerateSignal(bar *domain.Bar) *domain.Signal {
	switch {
	case s.crossedUp:
		return &domain.Signal{
			Timestamp: bar.Timestamp,
			Symbol:    bar.Symbol,
			Type:      domain.SignalLong,
			Reason:    fmt.Sprintf("fast MA(%d) crossed above slow MA(%d)", s.fastPeriod, s.slowPeriod),
		}
	case s.crossedDown:
		return &domain.Signal{
			Timestamp: bar.Timestamp,
			Symbol:    bar.Symbol,
			Type:      domain.SignalFlat,
			Reason:    fmt.Sprintf("fast MA(%d) crossed below slow MA(%d)", s.fastPeriod, s.slowPeriod),
		}
	}
	return nil
}
