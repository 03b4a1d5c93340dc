package domain

import "time"

// RunRecord is the persisted metadata for one completed backtest run.
// RunID is deterministic over strategy, symbol, date range and config
// digest, so re-running the same backtest hits the same record and
// persistence stays idempotent.
type RunRecord struct {
	RunID        string
	Strategy     string
	Symbol       string
	StartDate    time.Time
	EndDate      time.Time
	ConfigDigest string

	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64

	CreatedAt time.Time
}
