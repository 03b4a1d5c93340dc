package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"daywise-backtester/internal/metrics"
	"daywise-backtester/internal/reporting"
	"daywise-backtester/internal/storage"
	"daywise-backtester/internal/storage/migrations"
	pgstore "daywise-backtester/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run to report on (empty lists stored runs)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	outputDir := flag.String("output-dir", "output", "Directory for report files")
	outputJSON := flag.Bool("json", false, "Print the performance report as JSON")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	logger, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	runStore := pgstore.NewRunStore(pool)

	if *runID == "" {
		if err := listRuns(ctx, runStore); err != nil {
			logger.Fatal("list runs", zap.Error(err))
		}
		return
	}

	if err := report(ctx, pool, runStore, logger, *runID, *outputDir, *outputJSON); err != nil {
		logger.Fatal("report failed", zap.Error(err))
	}
}

func report(ctx context.Context, pool *pgstore.Pool, runStore storage.RunStore, logger *zap.Logger, runID, outputDir string, outputJSON bool) error {
	run, err := runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("run %s not found", runID)
		}
		return err
	}

	fills, err := pgstore.NewFillStore(pool).GetByRunID(ctx, runID)
	if err != nil {
		return err
	}
	daily, err := pgstore.NewDailyPnLStore(pool).GetByRunID(ctx, runID)
	if err != nil {
		return err
	}

	perf := metrics.Compute(run.InitialCapital, daily, fills)

	artifacts := &reporting.RunArtifacts{
		RunID:    run.RunID,
		Strategy: run.Strategy,
		Symbol:   run.Symbol,
		Fills:    fills,
		DailyPnL: daily,
		Report:   perf,
	}

	gen := reporting.NewGenerator(outputDir, logger)
	if err := gen.Generate(artifacts); err != nil {
		return err
	}

	if outputJSON {
		output, err := json.MarshalIndent(perf, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
	}

	return nil
}

func listRuns(ctx context.Context, runStore storage.RunStore) error {
	runs, err := runStore.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no stored runs")
		return nil
	}

	fmt.Printf("%-16s %-12s %-10s %-14s %-10s %s\n",
		"RUN ID", "STRATEGY", "SYMBOL", "FINAL EQUITY", "RETURN", "CREATED")
	for _, r := range runs {
		id := r.RunID
		if len(id) > 16 {
			id = id[:16]
		}
		fmt.Printf("%-16s %-12s %-10s %14.2f %9.2f%% %s\n",
			id, r.Strategy, r.Symbol, r.FinalEquity, r.TotalReturn*100,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
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
