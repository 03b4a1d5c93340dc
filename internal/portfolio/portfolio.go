// Package portfolio owns positions, cash and equity. It is the single
// mutable resource of a run: every fill flows through ApplyFill, and
// the accounting invariants are re-checked after each one.
package portfolio

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/idhash"
)

// Invariant names reported on violations.
const (
	InvariantMaxLeverage    = "max_leverage"
	InvariantPositiveEquity = "positive_equity"
)

// leverageTolerance absorbs floating-point noise in the post-fill
// leverage check. Real breaches exceed it by orders of magnitude.
const leverageTolerance = 1e-9

// InvariantError is a fatal accounting violation. It means the sizing
// or order logic has a bug; the run must halt rather than continue on
// corrupted state.
type InvariantError struct {
	Timestamp time.Time
	Symbol    string
	Invariant string
	Detail    string
	Fill      *domain.Fill // the offending fill
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated for %s at %s: %s",
		e.Invariant, e.Symbol, e.Timestamp.Format(time.RFC3339), e.Detail)
}

// Portfolio tracks cash and positions. Not safe for concurrent use;
// the engine is strictly sequential.
type Portfolio struct {
	logger *zap.Logger

	initialCapital float64
	maxLeverage    float64

	cash      float64
	positions map[string]*domain.Position

	realized   float64
	commission float64
	numFills   int
}

// New builds a portfolio with the given starting cash. maxLeverage is
// only used for the post-fill invariant check; enforcement happens at
// sizing time.
func New(initialCapital, maxLeverage float64, logger *zap.Logger) *Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{
		logger:         logger,
		initialCapital: initialCapital,
		maxLeverage:    maxLeverage,
		cash:           initialCapital,
		positions:      make(map[string]*domain.Position),
	}
}

// ApplyFill books a fill into cash and the symbol's position. Adds in
// the same direction blend the average entry price; reductions and
// reversals realize PnL against the average cost. The fill's
// RealizedPnL field is set here, before the fill reaches the trade
// log.
func (p *Portfolio) ApplyFill(fill *domain.Fill) error {
	pos, ok := p.positions[fill.Symbol]
	if !ok {
		pos = &domain.Position{Symbol: fill.Symbol}
		p.positions[fill.Symbol] = pos
	}

	signedQty := fill.Side.Sign() * fill.Quantity
	oldQty := pos.Quantity
	newQty := oldQty + signedQty

	switch {
	case oldQty == 0:
		pos.AvgPrice = fill.Price
		pos.OpenedAt = fill.Timestamp

	case sameSign(oldQty, signedQty):
		// Scale-up: weighted-average entry price.
		total := float64(abs64(oldQty)) + float64(abs64(signedQty))
		pos.AvgPrice = (pos.AvgPrice*float64(abs64(oldQty)) + fill.Price*float64(abs64(signedQty))) / total

	default:
		// Reduction or reversal: realize against average cost for the
		// closed quantity.
		closeQty := min64(abs64(signedQty), abs64(oldQty))
		direction := float64(1)
		if oldQty < 0 {
			direction = -1
		}
		realized := (fill.Price - pos.AvgPrice) * float64(closeQty) * direction
		fill.RealizedPnL = realized
		pos.RealizedPnL += realized
		p.realized += realized

		if newQty == 0 {
			pos.AvgPrice = 0
		} else if !sameSign(oldQty, newQty) {
			// Reversal: the surviving quantity was opened by this fill.
			pos.AvgPrice = fill.Price
			pos.OpenedAt = fill.Timestamp
		}
	}

	pos.Quantity = newQty
	pos.LastPrice = fill.Price
	pos.UnrealizedPnL = (fill.Price - pos.AvgPrice) * float64(pos.Quantity)
	pos.Commission += fill.Commission
	pos.UpdatedAt = fill.Timestamp

	if fill.Side == domain.OrderSideBuy {
		p.cash -= fill.GrossValue() + fill.Commission
	} else {
		p.cash += fill.GrossValue() - fill.Commission
	}
	p.commission += fill.Commission
	p.numFills++

	return p.checkInvariants(fill)
}

// checkInvariants verifies the post-fill accounting bounds. Violations
// are fatal.
func (p *Portfolio) checkInvariants(fill *domain.Fill) error {
	equity := p.Equity()
	gross := p.grossExposure()

	if p.maxLeverage <= 1.0 && equity <= 0 {
		return &InvariantError{
			Timestamp: fill.Timestamp,
			Symbol:    fill.Symbol,
			Invariant: InvariantPositiveEquity,
			Detail:    fmt.Sprintf("equity %.4f with max leverage %.2f", equity, p.maxLeverage),
			Fill:      fill,
		}
	}
	if equity > 0 && gross/equity > p.maxLeverage*(1+leverageTolerance) {
		return &InvariantError{
			Timestamp: fill.Timestamp,
			Symbol:    fill.Symbol,
			Invariant: InvariantMaxLeverage,
			Detail:    fmt.Sprintf("leverage %.6f exceeds %.2f", gross/equity, p.maxLeverage),
			Fill:      fill,
		}
	}
	return nil
}

// MarkToMarket reprices the bar's symbol at the bar close. Cash and
// realized PnL are untouched.
func (p *Portfolio) MarkToMarket(bar *domain.Bar) {
	pos, ok := p.positions[bar.Symbol]
	if !ok {
		return
	}
	pos.LastPrice = bar.Close
	pos.UnrealizedPnL = (bar.Close - pos.AvgPrice) * float64(pos.Quantity)
	pos.UpdatedAt = bar.Timestamp
}

// SquareOff closes every open position with a synthetic fill at its
// last marked price. This is the only fill path outside the order
// manager; square-off fills carry no commission or slippage. Fills are
// returned in sorted symbol order so replays are reproducible.
func (p *Portfolio) SquareOff(ts time.Time) ([]*domain.Fill, error) {
	symbols := make([]string, 0, len(p.positions))
	for sym, pos := range p.positions {
		if pos.Quantity != 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	var fills []*domain.Fill
	for _, sym := range symbols {
		pos := p.positions[sym]
		side := domain.OrderSideSell
		if pos.Quantity < 0 {
			side = domain.OrderSideBuy
		}
		fill := &domain.Fill{
			FillID:       idhash.ComputeFillID(fmt.Sprintf("EOD|%s|%d", sym, ts.UnixNano()), 0),
			Timestamp:    ts,
			Symbol:       sym,
			Side:         side,
			Quantity:     abs64(pos.Quantity),
			RawPrice:     pos.LastPrice,
			Price:        pos.LastPrice,
			EODSquareOff: true,
		}
		if err := p.ApplyFill(fill); err != nil {
			return fills, err
		}
		p.logger.Debug("position squared off",
			zap.String("symbol", sym),
			zap.Int64("quantity", fill.Quantity),
			zap.Float64("price", fill.Price))
		fills = append(fills, fill)
	}
	return fills, nil
}

// Snapshot captures the current state as an immutable value copy.
// Closed positions are dropped from the snapshot map.
func (p *Portfolio) Snapshot(ts time.Time) *domain.PortfolioSnapshot {
	positions := make(map[string]domain.Position)
	unrealized := 0.0
	for sym, pos := range p.positions {
		if pos.Quantity == 0 {
			continue
		}
		positions[sym] = *pos
		unrealized += pos.UnrealizedPnL
	}

	equity := p.Equity()
	leverage := 0.0
	if equity > 0 {
		leverage = p.grossExposure() / equity
	}

	return &domain.PortfolioSnapshot{
		Timestamp:     ts,
		Cash:          p.cash,
		Equity:        equity,
		Leverage:      leverage,
		Positions:     positions,
		RealizedPnL:   p.realized,
		UnrealizedPnL: unrealized,
		Commission:    p.commission,
		NumFills:      p.numFills,
	}
}

// Equity is cash plus the signed market value of all positions at
// their last marks.
func (p *Portfolio) Equity() float64 {
	equity := p.cash
	for _, pos := range p.positions {
		equity += pos.MarketValue(pos.LastPrice)
	}
	return equity
}

func (p *Portfolio) grossExposure() float64 {
	gross := 0.0
	for _, pos := range p.positions {
		gross += pos.Notional(pos.LastPrice)
	}
	return gross
}

// Cash returns current settled cash.
func (p *Portfolio) Cash() float64 { return p.cash }

// RealizedPnL returns cumulative realized PnL since run start.
func (p *Portfolio) RealizedPnL() float64 { return p.realized }

// Commission returns cumulative commission paid.
func (p *Portfolio) Commission() float64 { return p.commission }

// NumFills returns the count of applied fills.
func (p *Portfolio) NumFills() int { return p.numFills }

// OpenPositions returns the count of symbols with open exposure.
func (p *Portfolio) OpenPositions() int {
	n := 0
	for _, pos := range p.positions {
		if pos.Quantity != 0 {
			n++
		}
	}
	return n
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
