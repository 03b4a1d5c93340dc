package strategy

import (
	"errors"
	"fmt"

	"daywise-backtester/internal/config"
)

// Factory errors
var (
	ErrUnknownStrategy   = errors.New("unknown strategy name")
	ErrMissingFastPeriod = errors.New("ma_cross requires parameters.fast_period")
	ErrMissingSlowPeriod = errors.New("ma_cross requires parameters.slow_period")
	ErrInvalidPeriods    = errors.New("ma_cross requires 0 < fast_period < slow_period")
)

// FromConfig creates a Strategy from config.StrategyConfig.
// Validates required parameters per strategy name.
func FromConfig(cfg config.StrategyConfig) (Strategy, error) {
	switch cfg.Name {
	case "ma_cross":
		return fromMACrossConfig(cfg)
	case "buy_hold":
		return NewBuyHoldStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Name)
	}
}

func fromMACrossConfig(cfg config.StrategyConfig) (*MACrossStrategy, error) {
	fast, ok := intParam(cfg.Parameters, "fast_period")
	if !ok {
		return nil, ErrMissingFastPeriod
	}
	slow, ok := intParam(cfg.Parameters, "slow_period")
	if !ok {
		return nil, ErrMissingSlowPeriod
	}
	if fast <= 0 || fast >= slow {
		return nil, fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidPeriods, fast, slow)
	}
	return NewMACrossStrategy(fast, slow), nil
}

// intParam reads an integer parameter from the YAML-decoded map, which
// may hold it as int or float64 depending on how it was written.
func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
