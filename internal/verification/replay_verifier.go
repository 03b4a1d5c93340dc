package verification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"daywise-backtester/internal/backtest"
	"daywise-backtester/internal/config"
	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/feed"
	"daywise-backtester/internal/storage"
	"daywise-backtester/internal/strategy"
)

// ErrRunNotFound is returned when no stored run exists for the ID.
var ErrRunNotFound = errors.New("run not found")

// ReplayVerifier re-executes backtests and compares their output
// against a reference, either a fresh second run or a stored one.
type ReplayVerifier struct {
	cfg    *config.Config
	bars   []domain.Bar
	logger *zap.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Config *config.Config
	Bars   []domain.Bar
	Logger *zap.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayVerifier{
		cfg:    opts.Config,
		bars:   opts.Bars,
		logger: logger,
	}
}

// Verify runs the backtest twice over the same bars and compares the
// fill and daily-PnL sequences.
func (v *ReplayVerifier) Verify(ctx context.Context) (*VerificationReport, error) {
	first, err := v.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}

	second, err := v.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}

	return v.report(first.Fills, second.Fills, first.DailyPnL, second.DailyPnL), nil
}

// VerifyStored replays the backtest and compares it against the
// persisted output of a previous run.
func (v *ReplayVerifier) VerifyStored(ctx context.Context, runID string, fills storage.FillStore, daily storage.DailyPnLStore) (*VerificationReport, error) {
	storedFills, err := fills.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load stored fills: %w", err)
	}
	storedDaily, err := daily.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load stored daily pnl: %w", err)
	}
	if len(storedFills) == 0 && len(storedDaily) == 0 {
		return nil, ErrRunNotFound
	}

	replayed, err := v.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}

	return v.report(storedFills, replayed.Fills, storedDaily, replayed.DailyPnL), nil
}

// run executes one backtest with a fresh strategy and feed.
func (v *ReplayVerifier) run(ctx context.Context) (*backtest.Result, error) {
	strat, err := strategy.FromConfig(v.cfg.Strategy)
	if err != nil {
		return nil, err
	}

	f, err := feed.NewSliceFeed(v.bars)
	if err != nil {
		return nil, err
	}

	engine, err := backtest.New(v.cfg, strat, v.logger)
	if err != nil {
		return nil, err
	}

	return engine.Run(ctx, f)
}

func (v *ReplayVerifier) report(expFills, actFills []*domain.Fill, expDaily, actDaily []*domain.DailyPnL) *VerificationReport {
	divergences := CompareFills(expFills, actFills)
	divergences = append(divergences, CompareDailyPnL(expDaily, actDaily)...)

	report := &VerificationReport{
		Match:       len(divergences) == 0,
		FillCount:   len(expFills),
		DayCount:    len(expDaily),
		Divergences: divergences,
	}

	if report.Match {
		v.logger.Info("replay verified",
			zap.Int("fills", report.FillCount),
			zap.Int("days", report.DayCount))
	} else {
		v.logger.Warn("replay diverged",
			zap.Int("divergences", len(report.Divergences)))
	}

	return report
}
