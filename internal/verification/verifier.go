// Package verification checks that backtest runs are reproducible: the
// same bars and config must yield byte-identical fill and daily-PnL
// sequences on every run.
package verification

import (
	"fmt"

	"daywise-backtester/internal/domain"
)

// FieldDivergence represents a mismatch between two runs of the same
// backtest.
type FieldDivergence struct {
	Field    string      // field name, qualified by record index
	Expected interface{} // value from the first (or stored) run
	Actual   interface{} // value from the replayed run
}

// VerificationReport contains the outcome of a replay verification.
type VerificationReport struct {
	Match       bool
	FillCount   int // fills in the reference run
	DayCount    int // daily records in the reference run
	Divergences []FieldDivergence
}

// CompareFills compares two fill sequences field by field. Replays of a
// deterministic run must match exactly, so floats are compared with ==.
func CompareFills(expected, actual []*domain.Fill) []FieldDivergence {
	var divergences []FieldDivergence

	if len(expected) != len(actual) {
		divergences = append(divergences, FieldDivergence{
			Field:    "FillCount",
			Expected: len(expected),
			Actual:   len(actual),
		})
		return divergences
	}

	for i := range expected {
		e, a := expected[i], actual[i]
		prefix := fmt.Sprintf("Fill[%d].", i)

		if e.FillID != a.FillID {
			divergences = append(divergences, FieldDivergence{prefix + "FillID", e.FillID, a.FillID})
		}
		if e.OrderID != a.OrderID {
			divergences = append(divergences, FieldDivergence{prefix + "OrderID", e.OrderID, a.OrderID})
		}
		if !e.Timestamp.Equal(a.Timestamp) {
			divergences = append(divergences, FieldDivergence{prefix + "Timestamp", e.Timestamp, a.Timestamp})
		}
		if e.Symbol != a.Symbol {
			divergences = append(divergences, FieldDivergence{prefix + "Symbol", e.Symbol, a.Symbol})
		}
		if e.Side != a.Side {
			divergences = append(divergences, FieldDivergence{prefix + "Side", e.Side, a.Side})
		}
		if e.Quantity != a.Quantity {
			divergences = append(divergences, FieldDivergence{prefix + "Quantity", e.Quantity, a.Quantity})
		}
		if e.RawPrice != a.RawPrice {
			divergences = append(divergences, FieldDivergence{prefix + "RawPrice", e.RawPrice, a.RawPrice})
		}
		if e.Price != a.Price {
			divergences = append(divergences, FieldDivergence{prefix + "Price", e.Price, a.Price})
		}
		if e.Commission != a.Commission {
			divergences = append(divergences, FieldDivergence{prefix + "Commission", e.Commission, a.Commission})
		}
		if e.RealizedPnL != a.RealizedPnL {
			divergences = append(divergences, FieldDivergence{prefix + "RealizedPnL", e.RealizedPnL, a.RealizedPnL})
		}
		if e.EODSquareOff != a.EODSquareOff {
			divergences = append(divergences, FieldDivergence{prefix + "EODSquareOff", e.EODSquareOff, a.EODSquareOff})
		}
	}

	return divergences
}

// CompareDailyPnL compares two daily rollup sequences field by field.
func CompareDailyPnL(expected, actual []*domain.DailyPnL) []FieldDivergence {
	var divergences []FieldDivergence

	if len(expected) != len(actual) {
		divergences = append(divergences, FieldDivergence{
			Field:    "DayCount",
			Expected: len(expected),
			Actual:   len(actual),
		})
		return divergences
	}

	for i := range expected {
		e, a := expected[i], actual[i]
		prefix := fmt.Sprintf("Day[%d].", i)

		if !e.Date.Equal(a.Date) {
			divergences = append(divergences, FieldDivergence{prefix + "Date", e.Date, a.Date})
		}
		if e.StartingEquity != a.StartingEquity {
			divergences = append(divergences, FieldDivergence{prefix + "StartingEquity", e.StartingEquity, a.StartingEquity})
		}
		if e.EndingEquity != a.EndingEquity {
			divergences = append(divergences, FieldDivergence{prefix + "EndingEquity", e.EndingEquity, a.EndingEquity})
		}
		if e.RealizedPnL != a.RealizedPnL {
			divergences = append(divergences, FieldDivergence{prefix + "RealizedPnL", e.RealizedPnL, a.RealizedPnL})
		}
		if e.UnrealizedPnL != a.UnrealizedPnL {
			divergences = append(divergences, FieldDivergence{prefix + "UnrealizedPnL", e.UnrealizedPnL, a.UnrealizedPnL})
		}
		if e.Commission != a.Commission {
			divergences = append(divergences, FieldDivergence{prefix + "Commission", e.Commission, a.Commission})
		}
		if e.NumFills != a.NumFills {
			divergences = append(divergences, FieldDivergence{prefix + "NumFills", e.NumFills, a.NumFills})
		}
	}

	return divergences
}
