package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"daywise-backtester/internal/backtest"
	"daywise-backtester/internal/config"
	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/feed"
	"daywise-backtester/internal/idhash"
	"daywise-backtester/internal/metrics"
	"daywise-backtester/internal/observability"
	"daywise-backtester/internal/reporting"
	"daywise-backtester/internal/storage"
	chstore "daywise-backtester/internal/storage/clickhouse"
	"daywise-backtester/internal/storage/memory"
	"daywise-backtester/internal/storage/migrations"
	pgstore "daywise-backtester/internal/storage/postgres"
	"daywise-backtester/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	symbol := flag.String("symbol", "", "Override data.symbol")
	csvPath := flag.String("csv", "", "Override data.csv_path")
	strategyName := flag.String("strategy", "", "Override strategy.name")
	outputDir := flag.String("output-dir", "", "Override reporting.output_dir")
	postgresDSN := flag.String("postgres-dsn", "", "Override storage.postgres_dsn")
	outputJSON := flag.Bool("json", false, "Print the performance report as JSON")
	persistResult := flag.Bool("persist", false, "Persist run results to PostgreSQL")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *symbol, *csvPath, *strategyName, *outputDir, *postgresDSN)

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Handle shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	if err := run(ctx, cfg, logger, *outputJSON, *persistResult); err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, outputJSON, persistResult bool) error {
	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		return err
	}

	bars, err := loadBars(ctx, cfg)
	if err != nil {
		return err
	}
	f, err := feed.NewSliceFeed(bars)
	if err != nil {
		return err
	}

	engine, err := backtest.New(cfg, strat, logger)
	if err != nil {
		return err
	}

	logger.Info("starting backtest",
		zap.String("strategy", cfg.Strategy.Name),
		zap.String("symbol", cfg.Data.Symbol),
		zap.Int("bars", f.Len()))

	result, err := engine.Run(ctx, f)
	if err != nil {
		return err
	}

	report := metrics.Compute(result.InitialCapital, result.DailyPnL, result.Fills)

	start := bars[0].Timestamp
	end := bars[len(bars)-1].Timestamp
	runID := idhash.ComputeRunID(cfg.Strategy.Name, cfg.Data.Symbol, start, end, cfg.Digest())

	artifacts := &reporting.RunArtifacts{
		RunID:     runID,
		Strategy:  cfg.Strategy.Name,
		Symbol:    cfg.Data.Symbol,
		Fills:     result.Fills,
		DailyPnL:  result.DailyPnL,
		Snapshots: result.Snapshots,
		Report:    report,
	}

	gen := reporting.NewGenerator(cfg.Reporting.OutputDir, logger)
	if err := gen.Generate(artifacts); err != nil {
		return err
	}

	if persistResult {
		if err := persist(ctx, cfg, logger, runID, start, end, result); err != nil {
			return err
		}
	}

	if outputJSON {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderSummary(artifacts, time.Now().UTC()))
	}

	return nil
}

// loadBars reads the full bar series from whichever source the config
// names: a CSV file or a ClickHouse bar store.
func loadBars(ctx context.Context, cfg *config.Config) ([]domain.Bar, error) {
	if cfg.Data.CSVPath != "" {
		return feed.LoadCSV(cfg.Data.CSVPath, cfg.Data.Symbol)
	}

	dataRange, err := cfg.DataRange()
	if err != nil {
		return nil, err
	}

	conn, err := chstore.NewConn(ctx, cfg.Data.ClickHouseDSN)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	f, err := feed.FromBarStore(ctx, chstore.NewBarStore(conn), cfg.Data.Symbol, dataRange.Start, dataRange.End)
	if err != nil {
		return nil, err
	}
	return f.Bars(), nil
}

// persist writes the run, its fills and its daily records to storage.
// A duplicate run ID means the identical backtest was already saved.
func persist(ctx context.Context, cfg *config.Config, logger *zap.Logger, runID string, start, end time.Time, result *backtest.Result) error {
	var (
		runStore   storage.RunStore      = memory.NewRunStore()
		fillStore  storage.FillStore     = memory.NewFillStore()
		dailyStore storage.DailyPnLStore = memory.NewDailyPnLStore()
	)

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}

		runStore = pgstore.NewRunStore(pool)
		fillStore = pgstore.NewFillStore(pool)
		dailyStore = pgstore.NewDailyPnLStore(pool)
	} else {
		logger.Warn("no postgres_dsn configured, persisting to process-local memory")
	}

	record := &domain.RunRecord{
		RunID:          runID,
		Strategy:       cfg.Strategy.Name,
		Symbol:         cfg.Data.Symbol,
		StartDate:      start,
		EndDate:        end,
		ConfigDigest:   cfg.Digest(),
		InitialCapital: result.InitialCapital,
		FinalEquity:    result.FinalEquity,
		TotalReturn:    result.FinalEquity/result.InitialCapital - 1,
		CreatedAt:      time.Now().UTC(),
	}

	if err := runStore.Insert(ctx, record); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Info("run already persisted", zap.String("run_id", runID))
			return nil
		}
		return err
	}
	if err := fillStore.InsertBulk(ctx, runID, result.Fills); err != nil {
		return err
	}
	if err := dailyStore.InsertBulk(ctx, runID, result.DailyPnL); err != nil {
		return err
	}

	logger.Info("run persisted",
		zap.String("run_id", runID),
		zap.Int("fills", len(result.Fills)),
		zap.Int("days", len(result.DailyPnL)))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyOverrides(cfg *config.Config, symbol, csvPath, strategyName, outputDir, postgresDSN string) {
	if symbol != "" {
		cfg.Data.Symbol = symbol
	}
	if csvPath != "" {
		cfg.Data.CSVPath = csvPath
		cfg.Data.ClickHouseDSN = ""
	}
	if strategyName != "" {
		cfg.Strategy.Name = strategyName
	}
	if outputDir != "" {
		cfg.Reporting.OutputDir = outputDir
	}
	if postgresDSN != "" {
		cfg.Storage.PostgresDSN = postgresDSN
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info("starting metrics server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", zap.Error(err))
	}
}
