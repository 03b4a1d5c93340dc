// Package backtest drives the daywise bar loop: strategy, risk
// sizing, order resolution, portfolio accounting, end-of-day
// square-off and the daily PnL rollup.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"daywise-backtester/internal/config"
	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/execution"
	"daywise-backtester/internal/feed"
	"daywise-backtester/internal/observability"
	"daywise-backtester/internal/orders"
	"daywise-backtester/internal/portfolio"
	"daywise-backtester/internal/risk"
	"daywise-backtester/internal/strategy"
)

// State is the engine lifecycle state.
type State string

const (
	StateRunning State = "RUNNING"
	StateDone    State = "DONE"
)

// diagnosticSnapshots is how many trailing snapshots are dumped when a
// fatal invariant violation halts the run.
const diagnosticSnapshots = 5

// Result is everything a completed run exposes to reporting and
// persistence: the full fill sequence (trade sheet), the per-bar
// snapshot sequence and the daily PnL rollup.
type Result struct {
	InitialCapital float64
	FinalEquity    float64
	BarsProcessed  int

	Fills     []*domain.Fill
	Orders    []*domain.Order
	Snapshots []*domain.PortfolioSnapshot
	DailyPnL  []*domain.DailyPnL
}

// Engine orchestrates one backtest run. It is single-use: construct,
// Run once, read the result.
type Engine struct {
	cfg    *config.Config
	strat  strategy.Strategy
	risk   *risk.Manager
	orders *orders.Manager
	pf     *portfolio.Portfolio
	logger *zap.Logger

	state       State
	prevBar     *domain.Bar
	currentDay  time.Time
	squareOffAt time.Duration
	sqDone      bool

	// day-start baselines for the daily rollup
	dayStartEquity     float64
	dayStartRealized   float64
	dayStartCommission float64
	dayStartFills      int

	fills     []*domain.Fill
	snapshots []*domain.PortfolioSnapshot
	daily     []*domain.DailyPnL
	bars      int
}

// New builds an engine from a validated config and a strategy.
func New(cfg *config.Config, strat strategy.Strategy, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, errors.New("nil strategy")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	squareOffAt := time.Duration(0)
	if cfg.EOD.SquareOff {
		var err error
		squareOffAt, err = config.ParseTimeOfDay(cfg.EOD.SquareOffTime)
		if err != nil {
			return nil, fmt.Errorf("square_off_time: %w", err)
		}
	}

	sim := execution.NewSimulator(cfg.Execution.CommissionPct, cfg.Execution.SlippageBps)
	return &Engine{
		cfg:         cfg,
		strat:       strat,
		risk:        risk.NewManager(cfg.Risk, cfg.Execution, logger),
		orders:      orders.NewManager(sim, logger),
		pf:          portfolio.New(cfg.Capital, cfg.Risk.MaxLeverage, logger),
		logger:      logger,
		state:       StateRunning,
		squareOffAt: squareOffAt,
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Run consumes the feed to exhaustion and returns the run result. Any
// error is fatal (data contract or invariant violation); partial state
// is not usable afterwards.
func (e *Engine) Run(ctx context.Context, f feed.Feed) (*Result, error) {
	if e.state != StateRunning {
		return nil, fmt.Errorf("engine already %s", e.state)
	}
	started := time.Now()

	for {
		bar, err := f.Next(ctx)
		if errors.Is(err, feed.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := e.processBar(bar); err != nil {
			return nil, err
		}
	}

	// Final day-close pass: the last bar of the stream is the EOD
	// trigger, so every run ends flat when square-off is enabled.
	if e.prevBar != nil {
		if err := e.closeDay(e.prevBar); err != nil {
			return nil, err
		}
	}
	e.state = StateDone
	observability.RecordRunDuration(time.Since(started).Seconds())

	e.logger.Info("run complete",
		zap.Int("bars", e.bars),
		zap.Int("fills", len(e.fills)),
		zap.Int("days", len(e.daily)),
		zap.Float64("final_equity", e.pf.Equity()))

	return &Result{
		InitialCapital: e.cfg.Capital,
		FinalEquity:    e.pf.Equity(),
		BarsProcessed:  e.bars,
		Fills:          e.fills,
		Orders:         e.orders.Archived(),
		Snapshots:      e.snapshots,
		DailyPnL:       e.daily,
	}, nil
}

func (e *Engine) processBar(bar *domain.Bar) error {
	// Data contract checks first: bad input aborts, never repairs.
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("data contract violation: %w", err)
	}
	if e.prevBar != nil && !bar.Timestamp.After(e.prevBar.Timestamp) {
		return fmt.Errorf("data contract violation: bar %s at %s does not advance past %s",
			bar.Symbol, bar.Timestamp.Format(time.RFC3339), e.prevBar.Timestamp.Format(time.RFC3339))
	}

	// Day boundary: finish the previous day, at its last bar's prices,
	// before this bar touches any state.
	if e.prevBar == nil {
		e.startDay(bar)
	} else if !bar.Day().Equal(e.currentDay) {
		if err := e.closeDay(e.prevBar); err != nil {
			return err
		}
		e.startDay(bar)
	}

	e.pf.MarkToMarket(bar)
	e.risk.Observe(bar)
	observability.RecordBar()

	e.strat.OnBar(bar)
	if sig := e.strat.GenerateSignal(bar); sig != nil {
		if err := e.routeSignal(sig, bar); err != nil {
			return err
		}
	}

	if err := e.resolveOrders(bar); err != nil {
		return err
	}

	// Intraday square-off once the configured wall-clock time passes.
	if e.cfg.EOD.SquareOff && !e.sqDone && timeOfDay(bar) >= e.squareOffAt {
		if err := e.squareOff(bar.Timestamp); err != nil {
			return err
		}
	}

	snap := e.pf.Snapshot(bar.Timestamp)
	e.snapshots = append(e.snapshots, snap)
	observability.UpdatePortfolio(snap.Equity, snap.Cash, snap.Leverage)

	e.prevBar = bar
	e.bars++
	return nil
}

// routeSignal runs the signal through the risk manager and submits the
// resulting order. Risk rejections are logged and dropped; the run
// continues.
func (e *Engine) routeSignal(sig *domain.Signal, bar *domain.Bar) error {
	observability.RecordSignal(string(sig.Type))

	// After the day's square-off only closing signals make sense, and
	// the book is already flat.
	if e.sqDone && sig.Type != domain.SignalFlat {
		e.logger.Warn("entry signal after square-off dropped",
			zap.String("symbol", sig.Symbol),
			zap.Time("timestamp", sig.Timestamp),
			zap.String("signal_type", string(sig.Type)))
		return nil
	}

	order, err := e.risk.Size(sig, e.pf.Snapshot(bar.Timestamp), bar.Open)
	if err != nil {
		var rej *risk.RejectionError
		if errors.As(err, &rej) {
			observability.RecordRiskRejection(rej.Constraint)
			e.logger.Warn("signal rejected",
				zap.String("symbol", rej.Symbol),
				zap.Time("timestamp", rej.Timestamp),
				zap.String("constraint", rej.Constraint),
				zap.String("detail", rej.Detail))
			return nil
		}
		return err
	}
	if order == nil {
		// FLAT with nothing to close.
		return nil
	}

	if err := e.orders.Submit(order); err != nil {
		return err
	}
	observability.RecordOrderSubmitted()
	return nil
}

// resolveOrders settles every pending order against the bar and books
// the fills.
func (e *Engine) resolveOrders(bar *domain.Bar) error {
	pending := e.orders.Pending()
	if pending == 0 {
		return nil
	}
	fills, err := e.orders.ResolveBar(bar)
	if err != nil {
		return err
	}
	for i := 0; i < len(fills); i++ {
		observability.RecordOrderResolved(true)
	}
	for i := 0; i < pending-len(fills); i++ {
		observability.RecordOrderResolved(false)
	}

	for _, fill := range fills {
		if err := e.pf.ApplyFill(fill); err != nil {
			return e.fatal(err)
		}
		e.fills = append(e.fills, fill)
		e.logger.Info("fill",
			zap.String("symbol", fill.Symbol),
			zap.String("side", string(fill.Side)),
			zap.Int64("quantity", fill.Quantity),
			zap.Float64("price", fill.Price),
			zap.Float64("commission", fill.Commission))
	}
	return nil
}

// squareOff flattens the book at the given timestamp using last marks.
func (e *Engine) squareOff(ts time.Time) error {
	fills, err := e.pf.SquareOff(ts)
	e.fills = append(e.fills, fills...)
	observability.RecordSquareOffFills(len(fills))
	if err != nil {
		return e.fatal(err)
	}
	e.sqDone = true
	return nil
}

func (e *Engine) startDay(bar *domain.Bar) {
	e.currentDay = bar.Day()
	e.sqDone = false
	e.dayStartEquity = e.pf.Equity()
	e.dayStartRealized = e.pf.RealizedPnL()
	e.dayStartCommission = e.pf.Commission()
	e.dayStartFills = e.pf.NumFills()
	e.logger.Debug("trading day started",
		zap.String("day", e.currentDay.Format("2006-01-02")),
		zap.Float64("starting_equity", e.dayStartEquity))
}

// closeDay finishes the current day at lastBar's prices: square-off if
// still pending, then the daily PnL record.
func (e *Engine) closeDay(lastBar *domain.Bar) error {
	if e.cfg.EOD.SquareOff && !e.sqDone {
		if err := e.squareOff(lastBar.Timestamp); err != nil {
			return err
		}
	}

	if e.cfg.EOD.DailyPnL {
		snap := e.pf.Snapshot(lastBar.Timestamp)
		rec := &domain.DailyPnL{
			Date:           e.currentDay,
			StartingEquity: e.dayStartEquity,
			EndingEquity:   snap.Equity,
			RealizedPnL:    snap.RealizedPnL - e.dayStartRealized,
			UnrealizedPnL:  snap.UnrealizedPnL,
			Commission:     snap.Commission - e.dayStartCommission,
			NumFills:       snap.NumFills - e.dayStartFills,
		}
		e.daily = append(e.daily, rec)
		e.logger.Info("daily pnl",
			zap.String("day", rec.Date.Format("2006-01-02")),
			zap.Float64("starting_equity", rec.StartingEquity),
			zap.Float64("ending_equity", rec.EndingEquity),
			zap.Float64("realized", rec.RealizedPnL))
	}
	observability.RecordDayCompleted()
	return nil
}

// fatal dumps diagnostic state before returning an unrecoverable
// error: the invariant details plus the last few snapshots, enough to
// reproduce the failure from the trade log.
func (e *Engine) fatal(err error) error {
	var inv *portfolio.InvariantError
	if errors.As(err, &inv) {
		fields := []zap.Field{
			zap.String("invariant", inv.Invariant),
			zap.String("symbol", inv.Symbol),
			zap.Time("timestamp", inv.Timestamp),
			zap.String("detail", inv.Detail),
		}
		if inv.Fill != nil {
			fields = append(fields,
				zap.String("fill_id", inv.Fill.FillID),
				zap.String("side", string(inv.Fill.Side)),
				zap.Int64("quantity", inv.Fill.Quantity),
				zap.Float64("price", inv.Fill.Price))
		}
		e.logger.Error("invariant violation, halting", fields...)

		tail := e.snapshots
		if len(tail) > diagnosticSnapshots {
			tail = tail[len(tail)-diagnosticSnapshots:]
		}
		for _, snap := range tail {
			e.logger.Error("diagnostic snapshot",
				zap.Time("timestamp", snap.Timestamp),
				zap.Float64("cash", snap.Cash),
				zap.Float64("equity", snap.Equity),
				zap.Float64("leverage", snap.Leverage),
				zap.Int("open_positions", snap.OpenPositions()))
		}
	}
	return err
}

func timeOfDay(bar *domain.Bar) time.Duration {
	return bar.Timestamp.Sub(bar.Day())
}
