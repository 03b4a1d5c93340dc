package risk

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"daywise-backtester/internal/config"
	"daywise-backtester/internal/domain"
)

var sigTime = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func execCfg(slippageBps float64) config.ExecutionConfig {
	return config.ExecutionConfig{CommissionPct: 0, SlippageBps: slippageBps}
}

func riskCfg() config.RiskConfig {
	return config.RiskConfig{
		SizingMethod:   "fraction",
		SizingValue:    0.1,
		VolLookback:    20,
		MaxPositionPct: 0.25,
		MaxLeverage:    1.0,
		MaxPositions:   0,
	}
}

func flatSnapshot(equity float64) *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{
		Timestamp: sigTime,
		Cash:      equity,
		Equity:    equity,
		Positions: map[string]domain.Position{},
	}
}

func longSignal(symbol string) *domain.Signal {
	return &domain.Signal{Timestamp: sigTime, Symbol: symbol, Type: domain.SignalLong}
}

func TestFractionSizing(t *testing.T) {
	m := NewManager(riskCfg(), execCfg(5), zap.NewNop())

	// 10% of 100000 = 10000 notional; expected fill 100 * 1.0005 =
	// 100.05; floor(10000 / 100.05) = 99.
	order, err := m.Size(longSignal("RELIANCE"), flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Quantity != 99 {
		t.Errorf("quantity = %d, want 99", order.Quantity)
	}
	if order.Side != domain.OrderSideBuy {
		t.Errorf("side = %s, want BUY", order.Side)
	}
	if order.Type != domain.OrderTypeMarket {
		t.Errorf("type = %s, want MARKET", order.Type)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want PENDING", order.Status)
	}
	if len(order.OrderID) != 64 {
		t.Errorf("order ID not a 64-char hash: %q", order.OrderID)
	}
}

func TestShortSignalSizesSellOrder(t *testing.T) {
	m := NewManager(riskCfg(), execCfg(0), zap.NewNop())
	sig := &domain.Signal{Timestamp: sigTime, Symbol: "INFY", Type: domain.SignalShort}

	order, err := m.Size(sig, flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Side != domain.OrderSideSell {
		t.Errorf("side = %s, want SELL", order.Side)
	}
	if order.Quantity != 100 {
		t.Errorf("quantity = %d, want 100", order.Quantity)
	}
}

func TestFullyInvestedRejected(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingValue = 0.5
	cfg.MaxPositionPct = 1.0
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	// All equity already deployed in the symbol: any further LONG must
	// clamp to zero and reject, never partially apply.
	snap := flatSnapshot(100000)
	snap.Cash = 0
	snap.Positions["RELIANCE"] = domain.Position{
		Symbol: "RELIANCE", Quantity: 1000, AvgPrice: 100, LastPrice: 100,
	}

	_, err := m.Size(longSignal("RELIANCE"), snap, 100.00)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	// With the cap at 100% the per-symbol check binds before leverage.
	if rej.Constraint != ConstraintMaxPositionPct {
		t.Errorf("constraint = %s, want %s", rej.Constraint, ConstraintMaxPositionPct)
	}
}

func TestMaxLeverageClampsAcrossSymbols(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingValue = 0.5
	cfg.MaxPositionPct = 1.0
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	// 80% of gross budget consumed by another symbol leaves 20000 of
	// leverage headroom: floor(20000/100) = 200 shares.
	snap := flatSnapshot(100000)
	snap.Positions["INFY"] = domain.Position{Symbol: "INFY", Quantity: 800, LastPrice: 100}

	order, err := m.Size(longSignal("RELIANCE"), snap, 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Quantity != 200 {
		t.Errorf("quantity = %d, want 200", order.Quantity)
	}
}

func TestPositionCapRepricesAtFillPrice(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingValue = 1.0
	cfg.MaxPositionPct = 1.0
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	// Fully invested at 100, then marked up to 110 at the close. The
	// order executes at the 100 open, which reprices the whole book
	// back down: the close-marked equity of 110000 must not admit any
	// additional size.
	snap := flatSnapshot(110000)
	snap.Cash = 0
	snap.Positions["RELIANCE"] = domain.Position{
		Symbol: "RELIANCE", Quantity: 1000, AvgPrice: 100, LastPrice: 110,
	}

	_, err := m.Size(longSignal("RELIANCE"), snap, 100.00)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.Constraint != ConstraintMaxPositionPct {
		t.Errorf("constraint = %s, want %s", rej.Constraint, ConstraintMaxPositionPct)
	}
}

func TestLeverageClampRepricesAtFillPrice(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingValue = 1.0
	cfg.MaxPositionPct = 1.0
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	// RELIANCE marked at 110 but filling at 100: equity at the fill
	// price is 94000, not the snapshot's 100000. The leverage headroom
	// left after INFY's 30000 gross admits exactly 40 more shares, so
	// the filled book lands on max leverage to the share.
	snap := flatSnapshot(100000)
	snap.Cash = 4000
	snap.Positions["INFY"] = domain.Position{
		Symbol: "INFY", Quantity: 300, AvgPrice: 100, LastPrice: 100,
	}
	snap.Positions["RELIANCE"] = domain.Position{
		Symbol: "RELIANCE", Quantity: 600, AvgPrice: 100, LastPrice: 110,
	}

	order, err := m.Size(longSignal("RELIANCE"), snap, 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Quantity != 40 {
		t.Errorf("quantity = %d, want 40", order.Quantity)
	}
}

func TestReversalReservesCommissionOnBothLegs(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingValue = 1.0
	cfg.MaxPositionPct = 1.0
	m := NewManager(cfg, config.ExecutionConfig{CommissionPct: 0.01}, zap.NewNop())

	// Reversing a 500-share long into a short trades 500 + resulting
	// shares, and commission on the whole trade comes out of equity.
	// The admitted short must stay within max leverage of the equity
	// net of that commission.
	snap := flatSnapshot(100000)
	snap.Cash = 50000
	snap.Positions["RELIANCE"] = domain.Position{
		Symbol: "RELIANCE", Quantity: 500, AvgPrice: 100, LastPrice: 100,
	}

	target := int64(1600)
	sig := &domain.Signal{
		Timestamp: sigTime, Symbol: "RELIANCE",
		Type: domain.SignalShort, TargetQuantity: &target,
	}
	order, err := m.Size(sig, snap, 100.00)
	if err != nil {
		t.Fatal(err)
	}
	// Headroom 1.0*(100000 - 0.01*500*100) over 100*(1+0.01) per share
	// caps the resulting short at 985, so the order trades 1485.
	if order.Quantity != 1485 {
		t.Errorf("quantity = %d, want 1485", order.Quantity)
	}
	resulting := 500 - order.Quantity
	commission := 0.01 * float64(order.Quantity) * 100.00
	gross := float64(-resulting) * 100.00
	if gross > 100000-commission {
		t.Errorf("post-fill gross %.2f exceeds max leverage of commission-adjusted equity %.2f",
			gross, 100000-commission)
	}
}

func TestMaxPositionPctClamps(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingValue = 0.5 // requests 50000 notional
	cfg.MaxPositionPct = 0.25
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	order, err := m.Size(longSignal("RELIANCE"), flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	// Clamped to 25% of equity = 25000 / 100 = 250 shares.
	if order.Quantity != 250 {
		t.Errorf("quantity = %d, want 250", order.Quantity)
	}
}

func TestMaxPositionsRejectsNewEntry(t *testing.T) {
	cfg := riskCfg()
	cfg.MaxPositions = 1
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	snap := flatSnapshot(100000)
	snap.Positions["INFY"] = domain.Position{Symbol: "INFY", Quantity: 10, LastPrice: 50}

	_, err := m.Size(longSignal("RELIANCE"), snap, 100.00)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.Constraint != ConstraintMaxPositions {
		t.Errorf("constraint = %s, want %s", rej.Constraint, ConstraintMaxPositions)
	}

	// Scaling the existing symbol is still allowed.
	if _, err := m.Size(longSignal("INFY"), snap, 50.00); err != nil {
		t.Errorf("scale-up rejected: %v", err)
	}
}

func TestFlatBypassesClamps(t *testing.T) {
	cfg := riskCfg()
	cfg.MaxPositions = 1
	m := NewManager(cfg, execCfg(5), zap.NewNop())

	snap := flatSnapshot(100000)
	snap.Positions["RELIANCE"] = domain.Position{Symbol: "RELIANCE", Quantity: -400, LastPrice: 100}

	sig := &domain.Signal{Timestamp: sigTime, Symbol: "RELIANCE", Type: domain.SignalFlat}
	order, err := m.Size(sig, snap, 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Side != domain.OrderSideBuy || order.Quantity != 400 {
		t.Errorf("closing order = %s %d, want BUY 400", order.Side, order.Quantity)
	}
}

func TestFlatWithNoPositionIsNoop(t *testing.T) {
	m := NewManager(riskCfg(), execCfg(0), zap.NewNop())
	sig := &domain.Signal{Timestamp: sigTime, Symbol: "RELIANCE", Type: domain.SignalFlat}
	order, err := m.Size(sig, flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order != nil {
		t.Errorf("expected no order, got %+v", order)
	}
}

func TestTargetQuantityOverridesSizing(t *testing.T) {
	m := NewManager(riskCfg(), execCfg(0), zap.NewNop())
	qty := int64(7)
	sig := &domain.Signal{Timestamp: sigTime, Symbol: "RELIANCE", Type: domain.SignalLong, TargetQuantity: &qty}

	order, err := m.Size(sig, flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Quantity != 7 {
		t.Errorf("quantity = %d, want 7", order.Quantity)
	}
}

func TestTargetQuantityStillClamped(t *testing.T) {
	m := NewManager(riskCfg(), execCfg(0), zap.NewNop())
	qty := int64(100000) // far beyond the 25% cap
	sig := &domain.Signal{Timestamp: sigTime, Symbol: "RELIANCE", Type: domain.SignalLong, TargetQuantity: &qty}

	order, err := m.Size(sig, flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Quantity != 250 {
		t.Errorf("quantity = %d, want 250", order.Quantity)
	}
}

func TestVolatilitySizingFallsBackWithoutHistory(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingMethod = "volatility"
	cfg.SizingValue = 0.1
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	// No bars observed: falls back to fraction semantics.
	order, err := m.Size(longSignal("RELIANCE"), flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if order.Quantity != 100 {
		t.Errorf("quantity = %d, want 100 (fraction fallback)", order.Quantity)
	}
}

func TestVolatilitySizingInverseScaling(t *testing.T) {
	cfg := riskCfg()
	cfg.SizingMethod = "volatility"
	cfg.SizingValue = 0.001
	cfg.VolLookback = 5
	cfg.MaxPositionPct = 1.0
	m := NewManager(cfg, execCfg(0), zap.NewNop())

	// Alternating closes give a strictly positive return stddev.
	prices := []float64{100, 102, 100, 102, 100, 102, 100}
	for i, p := range prices {
		m.Observe(&domain.Bar{
			Timestamp: sigTime.Add(time.Duration(i) * time.Minute),
			Symbol:    "RELIANCE",
			Open:      p, High: p + 1, Low: p - 1, Close: p,
		})
	}

	order, err := m.Size(longSignal("RELIANCE"), flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	// Volatility of the alternating series is around 2%, so the sized
	// notional is near 0.001*100000/0.02 = 5000, well below the
	// fraction fallback of 100000*0.001/100 = 1 share.
	if order.Quantity < 10 || order.Quantity > 100 {
		t.Errorf("quantity = %d, outside expected volatility-scaled range", order.Quantity)
	}
}

func TestOrderIDsUniquePerSubmission(t *testing.T) {
	m := NewManager(riskCfg(), execCfg(0), zap.NewNop())
	a, err := m.Size(longSignal("RELIANCE"), flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Size(longSignal("RELIANCE"), flatSnapshot(100000), 100.00)
	if err != nil {
		t.Fatal(err)
	}
	if a.OrderID == b.OrderID {
		t.Error("two submissions share an order ID")
	}
}
