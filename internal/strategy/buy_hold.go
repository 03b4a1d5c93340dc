package strategy

import "daywise-backtester/internal/domain"

// BuyHoldStrategy enters long on the first bar it sees and then holds
// for the rest of the run.
type BuyHoldStrategy struct {
	entered   bool
	signalNow bool
}

var _ Strategy = (*BuyHoldStrategy)(nil)

// NewBuyHoldStrategy builds a buy-and-hold strategy.
func NewBuyHoldStrategy() *BuyHoldStrategy {
	return &BuyHoldStrategy{}
}

// Name implements Strategy.
func (s *BuyHoldStrategy) Name() string { return "buy_hold" }

// OnBar implements Strategy.
func (s *BuyHoldStrategy) OnBar(bar *domain.Bar) {
	s.signalNow = !s.entered
	s.entered = true
}

// GenerateSignal emits a single LONG on the first bar.
func (s *BuyHoldStrategy) GenerateSignal(bar *domain.Bar) *domain.Signal {
	if !s.signalNow {
		return nil
	}
	return &domain.Signal{
		Timestamp: bar.Timestamp,
		Symbol:    bar.Symbol,
		Type:      domain.SignalLong,
		Reason:    "buy and hold entry",
	}
}
