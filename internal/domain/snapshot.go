package domain

import (
	"sort"
	"time"
)

// PortfolioSnapshot is the portfolio state captured after a bar has
// been fully processed. Snapshots are value copies: mutating the live
// portfolio never alters an already-captured snapshot.
type PortfolioSnapshot struct {
	Timestamp time.Time
	Cash      float64
	Equity    float64 // cash plus signed market value of all positions
	Leverage  float64 // gross exposure over equity

	Positions map[string]Position // open positions only, keyed by symbol

	RealizedPnL   float64
	UnrealizedPnL float64
	Commission    float64
	NumFills      int
}

// OpenPositions returns the count of symbols with nonzero quantity.
func (s *PortfolioSnapshot) OpenPositions() int {
	return len(s.Positions)
}

// Symbols returns the open-position symbols in sorted order, so that
// any iteration over a snapshot is deterministic.
func (s *PortfolioSnapshot) Symbols() []string {
	out := make([]string, 0, len(s.Positions))
	for sym := range s.Positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
