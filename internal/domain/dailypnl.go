package domain

import "time"

// DailyPnL is the end-of-day rollup for one trading day. One record is
// produced per day, after the square-off step when that is enabled.
type DailyPnL struct {
	Date time.Time // midnight of the trading day

	StartingEquity float64
	EndingEquity   float64
	RealizedPnL    float64 // realized during this day only
	UnrealizedPnL  float64 // carried overnight; zero when square-off is on
	Commission     float64 // commission paid during this day
	NumFills       int     // fills executed during this day
}

// Return is the day's equity return as a fraction of starting equity.
func (d *DailyPnL) Return() float64 {
	if d.StartingEquity == 0 {
		return 0
	}
	return (d.EndingEquity - d.StartingEquity) / d.StartingEquity
}
