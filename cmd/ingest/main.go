package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"daywise-backtester/internal/domain"
	"daywise-backtester/internal/feed"
	"daywise-backtester/internal/storage"
	chstore "daywise-backtester/internal/storage/clickhouse"
	"daywise-backtester/internal/storage/migrations"
)

func main() {
	csvPath := flag.String("csv", "", "Path to OHLCV CSV file (required)")
	symbol := flag.String("symbol", "", "Symbol to tag the bars with (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (required unless --dry-run)")
	batchSize := flag.Int("batch-size", 10000, "Bars per insert batch")
	dryRun := flag.Bool("dry-run", false, "Parse and validate the CSV without writing")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	logger, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *csvPath == "" {
		logger.Fatal("--csv is required")
	}
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if !*dryRun && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required unless --dry-run")
	}
	if *batchSize <= 0 {
		logger.Fatal("--batch-size must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	bars, err := feed.LoadCSV(*csvPath, *symbol)
	if err != nil {
		logger.Fatal("load csv", zap.Error(err))
	}
	logger.Info("csv loaded",
		zap.String("symbol", *symbol),
		zap.Int("bars", len(bars)),
		zap.Time("first", bars[0].Timestamp),
		zap.Time("last", bars[len(bars)-1].Timestamp))

	if *dryRun {
		logger.Info("dry run, nothing written")
		return
	}

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatal("connect to clickhouse", zap.Error(err))
	}
	defer conn.Close()

	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	if err := ingest(ctx, chstore.NewBarStore(conn), bars, *batchSize, logger); err != nil {
		logger.Fatal("ingest failed", zap.Error(err))
	}
}

// ingest writes bars in fixed-size batches so a large history does not
// build one giant insert.
func ingest(ctx context.Context, store storage.BarStore, bars []domain.Bar, batchSize int, logger *zap.Logger) error {
	total := 0
	for start := 0; start < len(bars); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(bars) {
			end = len(bars)
		}

		batch := make([]*domain.Bar, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &bars[i])
		}

		if err := store.InsertBulk(ctx, batch); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return fmt.Errorf("bars already ingested in batch starting at %s: %w",
					bars[start].Timestamp, err)
			}
			return err
		}

		total += len(batch)
		logger.Info("batch ingested", zap.Int("bars", len(batch)), zap.Int("total", total))
	}

	logger.Info("ingest complete", zap.Int("bars", total))
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
