package domain

// PerformanceReport is the full statistics set computed from a run's
// daily PnL sequence and trade log.
type PerformanceReport struct {
	// Equity
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"` // fraction, 0.12 = +12%
	CAGR           float64 `json:"cagr"`

	// Risk
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"` // fraction of peak equity
	MaxDrawdownDays      int     `json:"max_drawdown_days"`
	VaR95                float64 `json:"var_95"`  // daily return, 5th percentile
	CVaR95               float64 `json:"cvar_95"` // mean daily return below VaR95

	// Trades
	NumFills        int     `json:"num_fills"`
	NumTrades       int     `json:"num_trades"` // closing fills
	WinRate         float64 `json:"win_rate"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	Expectancy      float64 `json:"expectancy"` // mean realized PnL per trade
	TotalCommission float64 `json:"total_commission"`

	TradingDays int `json:"trading_days"`
}
