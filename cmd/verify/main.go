package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"daywise-backtester/internal/config"
	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/feed"
	chstore "daywise-backtester/internal/storage/clickhouse"
	"daywise-backtester/internal/storage/migrations"
	pgstore "daywise-backtester/internal/storage/postgres"
	"daywise-backtester/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (required)")
	runID := flag.String("run-id", "", "Verify against a stored run instead of a fresh double run")
	postgresDSN := flag.String("postgres-dsn", "", "Override storage.postgres_dsn (required with --run-id)")

	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "--config is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	report, err := verify(ctx, cfg, logger, *runID)
	if err != nil {
		logger.Fatal("verification failed", zap.Error(err))
	}

	printReport(report)
	if !report.Match {
		os.Exit(1)
	}
}

func verify(ctx context.Context, cfg *config.Config, logger *zap.Logger, runID string) (*verification.VerificationReport, error) {
	bars, err := loadBars(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		Config: cfg,
		Bars:   bars,
		Logger: logger,
	})

	if runID == "" {
		return verifier.Verify(ctx)
	}

	if cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("--run-id requires a postgres DSN")
	}
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return nil, err
	}

	return verifier.VerifyStored(ctx, runID, pgstore.NewFillStore(pool), pgstore.NewDailyPnLStore(pool))
}

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

func printReport(r *verification.VerificationReport) {
	fmt.Println()
	fmt.Println("=== Replay Verification ===")
	fmt.Printf("Fills:       %d\n", r.FillCount)
	fmt.Printf("Days:        %d\n", r.DayCount)
	if r.Match {
		fmt.Println("Result:      MATCH")
		return
	}

	fmt.Printf("Result:      DIVERGED (%d fields)\n", len(r.Divergences))
	for _, d := range r.Divergences {
		fmt.Printf("  %-28s expected=%v actual=%v\n", d.Field, d.Expected, d.Actual)
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
