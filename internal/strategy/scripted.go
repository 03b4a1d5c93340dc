package strategy

import "daywise-backtester/internal/domain"

// ScriptedStrategy replays a fixed timestamp-to-signal script. It
// exists for engine tests and the replay verifier, where the signal
// sequence must be known exactly in advance.
type ScriptedStrategy struct {
	script map[int64]domain.Signal
}

var _ Strategy = (*ScriptedStrategy)(nil)

// NewScriptedStrategy builds a strategy that emits the scripted signal
// whose timestamp matches the bar, if any.
func NewScriptedStrategy(signals []domain.Signal) *ScriptedStrategy {
	script := make(map[int64]domain.Signal, len(signals))
	for _, sig := range signals {
		script[sig.Timestamp.UnixNano()] = sig
	}
	return &ScriptedStrategy{script: script}
}

// Name implements Strategy.
func (s *ScriptedStrategy) Name() string { return "scripted" }

// OnBar implements Strategy. A script has no state to update.
func (s *ScriptedStrategy) OnBar(bar *domain.Bar) {}

// GenerateSignal implements Strategy.
func (s *ScriptedStrategy) GenerateSignal(bar *domain.Bar) *domain.Signal {
	sig, ok := s.script[bar.Timestamp.UnixNano()]
	if !ok {
		return nil
	}
	sig.Timestamp = bar.Timestamp
	sig.Symbol = bar.Symbol
	return &sig
}
