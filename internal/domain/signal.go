package domain

import "time"

// SignalType is the directional intent produced by a strategy.
type SignalType string

const (
	SignalLong  SignalType = "LONG"
	SignalShort SignalType = "SHORT"
	SignalFlat  SignalType = "FLAT"
)

// Valid reports whether t is one of the known signal types.
func (t SignalType) Valid() bool {
	switch t {
	case SignalLong, SignalShort, SignalFlat:
		return true
	}
	return false
}

// Signal is a strategy's directional intent for one symbol at one bar.
// Signals carry no sizing authority: the risk manager decides quantity
// unless TargetQuantity is set explicitly.
type Signal struct {
	Timestamp time.Time
	Symbol    string
	Type      SignalType
	// TargetQuantity, when non-nil, requests an explicit share count and
	// skips risk-manager sizing (limit checks still apply).
	TargetQuantity *int64
	Reason         string // free-form, for the trade sheet
}
