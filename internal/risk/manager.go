// Package risk converts strategy signals into sized, limit-checked
// orders. Every signal either becomes exactly one order or an explicit
// rejection; nothing is silently resized to a surprise quantity without
// a log line.
package risk

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"daywise-backtester/internal/config"
	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/execution"
	"daywise-backtester/internal/idhash"
)

// Constraint names used in rejections and logs.
const (
	ConstraintMaxPositionPct = "max_position_pct"
	ConstraintMaxLeverage    = "max_leverage"
	ConstraintMaxPositions   = "max_positions"
	ConstraintZeroQuantity   = "zero_quantity"
)

// RejectionError reports why a signal produced no order. Rejections
// are expected during normal operation and never abort a run.
type RejectionError struct {
	Symbol     string
	Timestamp  time.Time
	Constraint string
	Detail     string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("signal rejected for %s at %s: %s: %s",
		e.Symbol, e.Timestamp.Format(time.RFC3339), e.Constraint, e.Detail)
}

// Manager sizes signals and enforces position limits. It observes
// every bar to maintain the trailing return window used by volatility
// sizing.
type Manager struct {
	cfg    config.RiskConfig
	exec   config.ExecutionConfig
	logger *zap.Logger

	closes map[string][]float64 // trailing closes per symbol
	seq    int                  // order submission counter, feeds order IDs
}

// NewManager builds a risk manager. The execution config is needed
// because sizing divides by the expected fill price including
// slippage, and the leverage clamp reserves room for commission.
func NewManager(cfg config.RiskConfig, exec config.ExecutionConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		exec:   exec,
		logger: logger,
		closes: make(map[string][]float64),
	}
}

// Observe records a bar close for the volatility window. Called once
// per bar regardless of whether any signal arrives.
func (m *Manager) Observe(bar *domain.Bar) {
	window := m.closes[bar.Symbol]
	window = append(window, bar.Close)
	// One extra close beyond the lookback so we can form lookback returns.
	if maxLen := m.cfg.VolLookback + 1; len(window) > maxLen {
		window = window[len(window)-maxLen:]
	}
	m.closes[bar.Symbol] = window
}

// Size converts a signal into an order, or returns a *RejectionError.
// refPrice is the price the order is expected to execute against (the
// bar open for market orders). A FLAT signal with no open position
// returns (nil, nil): there is nothing to close.
//
// Constraints apply in a fixed order: max_position_pct clamps first,
// then max_leverage, then max_positions rejects new entries. FLAT
// signals bypass all clamps.
func (m *Manager) Size(sig *domain.Signal, snap *domain.PortfolioSnapshot, refPrice float64) (*domain.Order, error) {
	if !sig.Type.Valid() {
		return nil, fmt.Errorf("unknown signal type %q for %s", sig.Type, sig.Symbol)
	}
	if refPrice <= 0 {
		return nil, fmt.Errorf("non-positive reference price %.6f for %s", refPrice, sig.Symbol)
	}

	existing := int64(0)
	lastMark := 0.0
	if pos, ok := snap.Positions[sig.Symbol]; ok {
		existing = pos.Quantity
		lastMark = pos.LastPrice
	}

	if sig.Type == domain.SignalFlat {
		if existing == 0 {
			return nil, nil
		}
		return m.newOrder(sig, closingSide(existing), abs64(existing)), nil
	}

	side := domain.OrderSideBuy
	if sig.Type == domain.SignalShort {
		side = domain.OrderSideSell
	}
	fillPrice := execution.ApplySlippage(refPrice, side, m.exec.SlippageBps)

	qty, err := m.rawQuantity(sig, snap, fillPrice)
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, &RejectionError{
			Symbol:     sig.Symbol,
			Timestamp:  sig.Timestamp,
			Constraint: ConstraintZeroQuantity,
			Detail:     fmt.Sprintf("sized quantity is zero at price %.4f", fillPrice),
		}
	}

	sign := side.Sign()

	// The fill reprices the symbol's whole position, so both caps value
	// equity at the fill price, not the snapshot's close mark. A clamp
	// against the close mark admits size the post-fill check rejects
	// whenever the bar gaps between open and close.
	equityAtFill := snap.Equity + float64(existing)*(fillPrice-lastMark)

	// 1. Per-symbol notional cap.
	maxAbsQty := int64(math.Floor(m.cfg.MaxPositionPct * equityAtFill / fillPrice))
	if clamped := clampResulting(qty, existing, sign, maxAbsQty); clamped < qty {
		m.logger.Debug("quantity clamped by position limit",
			zap.String("symbol", sig.Symbol),
			zap.Int64("raw", qty),
			zap.Int64("clamped", clamped))
		qty = clamped
	}
	if qty <= 0 {
		return nil, &RejectionError{
			Symbol:     sig.Symbol,
			Timestamp:  sig.Timestamp,
			Constraint: ConstraintMaxPositionPct,
			Detail:     fmt.Sprintf("position already at %.0f%% cap", m.cfg.MaxPositionPct*100),
		}
	}

	// 2. Gross leverage cap, counting every other open position at its
	// last mark.
	otherGross := 0.0
	for sym, pos := range snap.Positions {
		if sym == sig.Symbol {
			continue
		}
		otherGross += pos.Notional(pos.LastPrice)
	}
	// Commission reduces equity at fill time, so the clamp reserves it:
	// otherwise an order sized to exactly max leverage breaches the
	// post-fill invariant. The traded quantity of a reversal is the
	// resulting size plus the existing size, so the reserve covers the
	// existing leg up front and the resulting leg per share.
	reserve := m.exec.CommissionPct * float64(abs64(existing)) * fillPrice
	headroom := m.cfg.MaxLeverage*(equityAtFill-reserve) - otherGross
	maxLevQty := int64(0)
	if headroom > 0 {
		perShare := fillPrice * (1 + m.cfg.MaxLeverage*m.exec.CommissionPct)
		maxLevQty = int64(math.Floor(headroom / perShare))
	}
	if clamped := clampResulting(qty, existing, sign, maxLevQty); clamped < qty {
		m.logger.Debug("quantity clamped by leverage limit",
			zap.String("symbol", sig.Symbol),
			zap.Int64("raw", qty),
			zap.Int64("clamped", clamped))
		qty = clamped
	}
	if qty <= 0 {
		return nil, &RejectionError{
			Symbol:     sig.Symbol,
			Timestamp:  sig.Timestamp,
			Constraint: ConstraintMaxLeverage,
			Detail:     fmt.Sprintf("gross exposure at max leverage %.2f", m.cfg.MaxLeverage),
		}
	}

	// 3. Open-position count. Only new entries are gated; scaling or
	// exiting an existing position is always allowed.
	if m.cfg.MaxPositions > 0 && existing == 0 && snap.OpenPositions() >= m.cfg.MaxPositions {
		return nil, &RejectionError{
			Symbol:     sig.Symbol,
			Timestamp:  sig.Timestamp,
			Constraint: ConstraintMaxPositions,
			Detail:     fmt.Sprintf("already holding %d positions", snap.OpenPositions()),
		}
	}

	return m.newOrder(sig, side, qty), nil
}

// rawQuantity applies the configured sizing method before any limit
// clamps. An explicit target quantity on the signal wins over both.
func (m *Manager) rawQuantity(sig *domain.Signal, snap *domain.PortfolioSnapshot, fillPrice float64) (int64, error) {
	if sig.TargetQuantity != nil {
		if *sig.TargetQuantity < 0 {
			return 0, fmt.Errorf("negative target quantity %d for %s", *sig.TargetQuantity, sig.Symbol)
		}
		return *sig.TargetQuantity, nil
	}

	notional := m.cfg.SizingValue * snap.Equity
	if m.cfg.SizingMethod == "volatility" {
		vol, ok := m.volatility(sig.Symbol)
		if !ok || vol == 0 {
			m.logger.Warn("insufficient history for volatility sizing, using fraction",
				zap.String("symbol", sig.Symbol),
				zap.Int("lookback", m.cfg.VolLookback))
		} else {
			notional = m.cfg.SizingValue * snap.Equity / vol
		}
	}
	return int64(math.Floor(notional / fillPrice)), nil
}

// volatility estimates recent volatility as the standard deviation of
// the trailing per-bar returns.
func (m *Manager) volatility(symbol string) (float64, bool) {
	closes := m.closes[symbol]
	if len(closes) < m.cfg.VolLookback+1 {
		return 0, false
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	stddev := talib.StdDev(returns, m.cfg.VolLookback, 1.0)
	return stddev[len(stddev)-1], true
}

func (m *Manager) newOrder(sig *domain.Signal, side domain.OrderSide, qty int64) *domain.Order {
	order := &domain.Order{
		CreatedAt: sig.Timestamp,
		Symbol:    sig.Symbol,
		Side:      side,
		Type:      domain.OrderTypeMarket,
		Quantity:  qty,
		Status:    domain.OrderStatusPending,
		Reason:    sig.Reason,
	}
	order.OrderID = idhash.ComputeOrderID(order.Symbol, order.CreatedAt, order.Side, order.Type, m.seq)
	m.seq++
	return order
}

// clampResulting returns the largest quantity not exceeding qty such
// that |existing + sign*q| stays within maxAbs.
func clampResulting(qty, existing, sign, maxAbs int64) int64 {
	if maxAbs < 0 {
		maxAbs = 0
	}
	if abs64(existing+sign*qty) <= maxAbs {
		return qty
	}
	allowed := maxAbs - sign*existing
	if allowed < 0 {
		return 0
	}
	return allowed
}

func closingSide(quantity int64) domain.OrderSide {
	if quantity > 0 {
		return domain.OrderSideSell
	}
	return domain.OrderSideBuy
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
