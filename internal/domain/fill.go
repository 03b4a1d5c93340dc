package domain

import "time"

// Fill is one execution record. Fills are immutable once appended to
// the trade log and are the sole source of truth for portfolio state:
// replaying the same fills reproduces the same portfolio byte for byte.
type Fill struct {
	FillID    string // deterministic, derived from OrderID
	OrderID   string
	Timestamp time.Time
	Symbol    string
	Side      OrderSide
	Quantity  int64 // always positive, direction in Side

	// Prices
	RawPrice float64 // reference price before slippage
	Price    float64 // execution price after slippage

	// Costs
	Commission  float64
	SlippageBps float64

	// RealizedPnL is the PnL realized by this fill against the average
	// cost of the position it reduced. Zero for opening fills.
	RealizedPnL float64

	// EODSquareOff marks fills synthesized by the end-of-day flattening
	// step rather than by an order.
	EODSquareOff bool
}

// GrossValue is price times quantity, before commission.
func (f *Fill) GrossValue() float64 {
	return f.Price * float64(f.Quantity)
}

// NetValue is the gross value plus commission, the total cash impact of
// a buy (for sells, cash changes by gross minus commission).
func (f *Fill) NetValue() float64 {
	return f.GrossValue() + f.Commission
}
