// Package execution simulates intrabar order fills. The model is
// first-touch: an order fills at the first price the bar could have
// traded through, using only the bar's OHLC, never information from
// later bars.
package execution

import (
	"fmt"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/idhash"
)

// Simulator prices fills for resolved orders. It is stateless apart
// from its cost parameters, so the same order against the same bar
// always produces the same fill.
type Simulator struct {
	commissionPct float64
	slippageBps   float64
}

// NewSimulator builds a fill simulator with the given costs.
// commissionPct is a fraction of notional (0.001 = 10 bps per side),
// slippageBps is applied against the order direction.
func NewSimulator(commissionPct, slippageBps float64) *Simulator {
	return &Simulator{
		commissionPct: commissionPct,
		slippageBps:   slippageBps,
	}
}

// Fill resolves order against bar. It returns a fill when the bar
// touches the order's trigger price, or nil when the order does not
// execute within this bar. Market orders always fill at the bar open.
//
// fillSeq feeds the deterministic fill ID and must be unique per order.
func (s *Simulator) Fill(order *domain.Order, bar *domain.Bar, fillSeq int) (*domain.Fill, error) {
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("order %s: non-positive quantity %d", order.OrderID, order.Quantity)
	}

	rawPrice, touched, err := s.touchPrice(order, bar)
	if err != nil {
		return nil, err
	}
	if !touched {
		return nil, nil
	}

	price := ApplySlippage(rawPrice, order.Side, s.slippageBps)
	commission := s.commissionPct * price * float64(order.Quantity)

	return &domain.Fill{
		FillID:      idhash.ComputeFillID(order.OrderID, fillSeq),
		OrderID:     order.OrderID,
		Timestamp:   bar.Timestamp,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Quantity:    order.Quantity,
		RawPrice:    rawPrice,
		Price:       price,
		Commission:  commission,
		SlippageBps: s.slippageBps,
	}, nil
}

// touchPrice returns the pre-slippage execution price and whether the
// bar reaches the order at all.
func (s *Simulator) touchPrice(order *domain.Order, bar *domain.Bar) (float64, bool, error) {
	switch order.Type {
	case domain.OrderTypeMarket:
		return bar.Open, true, nil

	case domain.OrderTypeLimit:
		if order.LimitPrice == nil {
			return 0, false, fmt.Errorf("order %s: limit order without limit price", order.OrderID)
		}
		limit := *order.LimitPrice
		if order.Side == domain.OrderSideBuy {
			// Buy limit fills once price trades at or below the limit.
			// A gap-down open fills at the better open price.
			if bar.Low > limit {
				return 0, false, nil
			}
			if bar.Open <= limit {
				return bar.Open, true, nil
			}
			return limit, true, nil
		}
		// Sell limit fills once price trades at or above the limit.
		if bar.High < limit {
			return 0, false, nil
		}
		if bar.Open >= limit {
			return bar.Open, true, nil
		}
		return limit, true, nil

	case domain.OrderTypeStop:
		if order.StopPrice == nil {
			return 0, false, fmt.Errorf("order %s: stop order without stop price", order.OrderID)
		}
		stop := *order.StopPrice
		if order.Side == domain.OrderSideBuy {
			// Buy stop triggers once price trades at or above the stop.
			// A gap-up open executes at the worse open price.
			if bar.High < stop {
				return 0, false, nil
			}
			if bar.Open >= stop {
				return bar.Open, true, nil
			}
			return stop, true, nil
		}
		// Sell stop triggers once price trades at or below the stop.
		if bar.Low > stop {
			return 0, false, nil
		}
		if bar.Open <= stop {
			return bar.Open, true, nil
		}
		return stop, true, nil
	}
	return 0, false, fmt.Errorf("order %s: unknown order type %q", order.OrderID, order.Type)
}

// ApplySlippage moves price against the order direction by bps basis
// points: buys pay up, sells receive less.
func ApplySlippage(price float64, side domain.OrderSide, bps float64) float64 {
	if side == domain.OrderSideSell {
		return price * (1 - bps/10000)
	}
	return price * (1 + bps/10000)
}
