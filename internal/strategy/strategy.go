package strategy

import "daywise-backtester/internal/domain"

// Strategy turns bars into directional signals.
//
// The engine calls OnBar first, then GenerateSignal, once each per
// bar. OnBar folds the bar into internal state; GenerateSignal is a
// pure read of that state and returns at most one signal, which the
// engine executes against the same bar's open.
type Strategy interface {
	// Name returns the strategy identifier used in configs and reports.
	Name() string

	// OnBar updates internal state with the incoming bar.
	OnBar(bar *domain.Bar)

	// GenerateSignal returns at most one signal for the bar, or nil.
	// It must not mutate strategy state.
	GenerateSignal(bar *domain.Bar) *domain.Signal
}
