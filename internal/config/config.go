package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps all validation failures found in a config
// file. Validation collects every problem before failing so a bad file
// is fixed in one pass.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full run configuration, loaded from YAML. Zero values
// are filled by Default before validation.
type Config struct {
	Capital   float64         `yaml:"capital"`
	Execution ExecutionConfig `yaml:"execution"`
	Risk      RiskConfig      `yaml:"risk"`
	EOD       EODConfig       `yaml:"eod"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Data      DataConfig      `yaml:"data"`
	Reporting ReportingConfig `yaml:"reporting"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ExecutionConfig controls fill simulation costs.
type ExecutionConfig struct {
	CommissionPct float64 `yaml:"commission_pct"` // fraction of notional, e.g. 0.001
	SlippageBps   float64 `yaml:"slippage_bps"`   // basis points against the order
}

// RiskConfig controls sizing and the position limits enforced before
// any order is created.
type RiskConfig struct {
	SizingMethod   string  `yaml:"sizing_method"` // "fraction" or "volatility"
	SizingValue    float64 `yaml:"sizing_value"`
	VolLookback    int     `yaml:"vol_lookback"` // bars of returns for volatility sizing
	MaxPositionPct float64 `yaml:"max_position_pct"`
	MaxLeverage    float64 `yaml:"max_leverage"`
	MaxPositions   int     `yaml:"max_positions"` // 0 means unlimited
}

// EODConfig controls the daywise behavior: square-off and the daily
// PnL rollup.
type EODConfig struct {
	SquareOff     bool   `yaml:"square_off"`
	SquareOffTime string `yaml:"square_off_time"` // "HH:MM", bar local time
	DailyPnL      bool   `yaml:"daily_pnl"`
}

// StrategyConfig selects and parameterizes the strategy.
type StrategyConfig struct {
	Name       string         `yaml:"name"`
	Parameters map[string]any `yaml:"parameters"`
}

// DataConfig selects the bar source. Exactly one of CSVPath or
// ClickHouseDSN must be set.
type DataConfig struct {
	Symbol        string `yaml:"symbol"`
	CSVPath       string `yaml:"csv_path"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	Start         string `yaml:"start"` // RFC 3339, optional unless loading from ClickHouse
	End           string `yaml:"end"`
}

// ReportingConfig controls report output.
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// StorageConfig enables result persistence. Empty DSN disables the
// Postgres sink and results stay in memory.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns a config with the documented defaults applied.
func Default() *Config {
	return &Config{
		Capital: 100000,
		Execution: ExecutionConfig{
			CommissionPct: 0.001,
			SlippageBps:   5,
		},
		Risk: RiskConfig{
			SizingMethod:   "fraction",
			SizingValue:    0.1,
			VolLookback:    20,
			MaxPositionPct: 0.25,
			MaxLeverage:    1.0,
			MaxPositions:   0,
		},
		EOD: EODConfig{
			SquareOff:     true,
			SquareOffTime: "15:15",
			DailyPnL:      true,
		},
		Strategy: StrategyConfig{
			Name: "buy_hold",
		},
		Reporting: ReportingConfig{
			OutputDir: "output",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads and validates a YAML config file. Unknown keys are
// rejected so typos surface immediately.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config and returns every problem found, joined
// into a single error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string

	if c.Capital <= 0 {
		problems = append(problems, fmt.Sprintf("capital must be positive, got %.2f", c.Capital))
	}
	if c.Execution.CommissionPct < 0 {
		problems = append(problems, fmt.Sprintf("execution.commission_pct must be non-negative, got %.6f", c.Execution.CommissionPct))
	}
	if c.Execution.SlippageBps < 0 {
		problems = append(problems, fmt.Sprintf("execution.slippage_bps must be non-negative, got %.2f", c.Execution.SlippageBps))
	}

	switch c.Risk.SizingMethod {
	case "fraction":
		if c.Risk.SizingValue <= 0 || c.Risk.SizingValue > 1 {
			problems = append(problems, fmt.Sprintf("risk.sizing_value must be in (0, 1] for fraction sizing, got %.4f", c.Risk.SizingValue))
		}
	case "volatility":
		if c.Risk.SizingValue <= 0 {
			problems = append(problems, fmt.Sprintf("risk.sizing_value must be positive for volatility sizing, got %.4f", c.Risk.SizingValue))
		}
		if c.Risk.VolLookback < 2 {
			problems = append(problems, fmt.Sprintf("risk.vol_lookback must be at least 2, got %d", c.Risk.VolLookback))
		}
	default:
		problems = append(problems, fmt.Sprintf("risk.sizing_method must be fraction or volatility, got %q", c.Risk.SizingMethod))
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		problems = append(problems, fmt.Sprintf("risk.max_position_pct must be in (0, 1], got %.4f", c.Risk.MaxPositionPct))
	}
	if c.Risk.MaxLeverage <= 0 {
		problems = append(problems, fmt.Sprintf("risk.max_leverage must be positive, got %.2f", c.Risk.MaxLeverage))
	}
	if c.Risk.MaxPositions < 0 {
		problems = append(problems, fmt.Sprintf("risk.max_positions must be non-negative, got %d", c.Risk.MaxPositions))
	}

	if c.EOD.SquareOff {
		if _, err := ParseTimeOfDay(c.EOD.SquareOffTime); err != nil {
			problems = append(problems, fmt.Sprintf("eod.square_off_time: %v", err))
		}
	}

	if c.Strategy.Name == "" {
		problems = append(problems, "strategy.name is required")
	}

	if c.Data.Symbol == "" {
		problems = append(problems, "data.symbol is required")
	}
	if c.Data.CSVPath == "" && c.Data.ClickHouseDSN == "" {
		problems = append(problems, "one of data.csv_path or data.clickhouse_dsn is required")
	}
	if c.Data.CSVPath != "" && c.Data.ClickHouseDSN != "" {
		problems = append(problems, "data.csv_path and data.clickhouse_dsn are mutually exclusive")
	}
	if c.Data.ClickHouseDSN != "" {
		if _, err := c.DataRange(); err != nil {
			problems = append(problems, fmt.Sprintf("data range: %v", err))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
}

// TimeRange is an inclusive-start, inclusive-end window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// DataRange parses the configured start/end. Both must be set and
// ordered when a range is required (ClickHouse loads).
func (c *Config) DataRange() (TimeRange, error) {
	if c.Data.Start == "" || c.Data.End == "" {
		return TimeRange{}, errors.New("data.start and data.end are required")
	}
	start, err := time.Parse(time.RFC3339, c.Data.Start)
	if err != nil {
		return TimeRange{}, fmt.Errorf("data.start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, c.Data.End)
	if err != nil {
		return TimeRange{}, fmt.Errorf("data.end: %w", err)
	}
	if !start.Before(end) {
		return TimeRange{}, fmt.Errorf("data.start %s not before data.end %s", c.Data.Start, c.Data.End)
	}
	return TimeRange{Start: start, End: end}, nil
}

// Digest returns a deterministic hash of the config's YAML encoding,
// used as a component of run IDs.
func (c *Config) Digest() string {
	raw, err := yaml.Marshal(c)
	if err != nil {
		// Config structs always marshal; this path is unreachable with
		// the types above.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ParseTimeOfDay parses an "HH:MM" wall-clock time and returns the
// offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
