package domain

import "time"

// PositionSide classifies a position by the sign of its quantity.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionFlat  PositionSide = "FLAT"
)

// Position is the net holding in one symbol. Quantity is signed:
// positive long, negative short, zero flat.
type Position struct {
	Symbol   string
	Quantity int64
	AvgPrice float64 // average entry price of the open quantity

	// LastPrice is the most recent mark, updated on every bar close.
	LastPrice float64

	RealizedPnL   float64 // cumulative, survives the position going flat
	UnrealizedPnL float64
	Commission    float64 // cumulative commission paid on this symbol

	OpenedAt  time.Time
	UpdatedAt time.Time
}

// Side returns the direction implied by the signed quantity.
func (p *Position) Side() PositionSide {
	switch {
	case p.Quantity > 0:
		return PositionLong
	case p.Quantity < 0:
		return PositionShort
	}
	return PositionFlat
}

// Open reports whether any quantity is held.
func (p *Position) Open() bool {
	return p.Quantity != 0
}

// MarketValue is the signed value of the position at price.
func (p *Position) MarketValue(price float64) float64 {
	return float64(p.Quantity) * price
}

// Notional is the absolute exposure of the position at price, the
// quantity that counts toward gross leverage.
func (p *Position) Notional(price float64) float64 {
	v := p.MarketValue(price)
	if v < 0 {
		return -v
	}
	return v
}
