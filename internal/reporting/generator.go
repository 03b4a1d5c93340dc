// Package reporting writes the output artifacts of a completed run:
// trade sheet, daily PnL, equity curve, metrics JSON and a text
// summary.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"daywise-backtester/internal/domain"
)

// Output file names within the run's output directory.
const (
	FileTradeSheet  = "trade_sheet.csv"
	FileDailyPnL    = "daily_pnl.csv"
	FileEquityCurve = "equity_curve.csv"
	FileMetrics     = "metrics.json"
	FileSummary     = "summary.txt"
)

// RunArtifacts bundles everything a finished run hands to the report
// generator.
type RunArtifacts struct {
	RunID    string
	Strategy string
	Symbol   string

	Fills     []*domain.Fill
	DailyPnL  []*domain.DailyPnL
	Snapshots []*domain.PortfolioSnapshot
	Report    *domain.PerformanceReport
}

// Generator writes report files to an output directory.
type Generator struct {
	outputDir string
	logger    *zap.Logger
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator rooted at outputDir.
func NewGenerator(outputDir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		outputDir: outputDir,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate writes all report files for one run. The output directory
// is created if missing; existing files are overwritten.
func (g *Generator) Generate(artifacts *RunArtifacts) error {
	if artifacts == nil || artifacts.Report == nil {
		return fmt.Errorf("generate report: nil artifacts")
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", g.outputDir, err)
	}

	metricsJSON, err := json.MarshalIndent(artifacts.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	files := map[string][]byte{
		FileTradeSheet:  []byte(RenderTradeSheetCSV(artifacts.Fills)),
		FileDailyPnL:    []byte(RenderDailyPnLCSV(artifacts.DailyPnL)),
		FileEquityCurve: []byte(RenderEquityCurveCSV(artifacts.Snapshots)),
		FileMetrics:     append(metricsJSON, '\n'),
		FileSummary:     []byte(RenderSummary(artifacts, g.now())),
	}

	for _, name := range []string{FileTradeSheet, FileDailyPnL, FileEquityCurve, FileMetrics, FileSummary} {
		path := filepath.Join(g.outputDir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	g.logger.Info("report written",
		zap.String("run_id", artifacts.RunID),
		zap.String("output_dir", g.outputDir),
		zap.Int("fills", len(artifacts.Fills)),
		zap.Int("trading_days", len(artifacts.DailyPnL)))

	return nil
}
