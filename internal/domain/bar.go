package domain

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV sample for a fixed interval. Bars are immutable once
// loaded by the data layer and arrive strictly ordered by timestamp
// within a feed.
type Bar struct {
	Timestamp time.Time // bar open time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Day returns the trading day the bar belongs to, truncated to midnight
// in the bar's location.
func (b *Bar) Day() time.Time {
	y, m, d := b.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, b.Timestamp.Location())
}

// Validate checks the bar for contract violations. Any failure here is
// fatal to a run: the engine never attempts to repair bad input data.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar at %s: empty symbol", b.Timestamp.Format(time.RFC3339))
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar for %s: zero timestamp", b.Symbol)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	} {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return fmt.Errorf("bar %s at %s: %s is not finite", b.Symbol, b.Timestamp.Format(time.RFC3339), p.name)
		}
		if p.value <= 0 {
			return fmt.Errorf("bar %s at %s: %s price %.6f is not positive", b.Symbol, b.Timestamp.Format(time.RFC3339), p.name, p.value)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s at %s: high %.6f below low %.6f", b.Symbol, b.Timestamp.Format(time.RFC3339), b.High, b.Low)
	}
	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return fmt.Errorf("bar %s at %s: open/close outside [low, high]", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s at %s: negative volume %.2f", b.Symbol, b.Timestamp.Format(time.RFC3339), b.Volume)
	}
	return nil
}
