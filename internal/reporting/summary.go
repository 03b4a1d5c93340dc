package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderSummary renders a human-readable run summary.
func RenderSummary(a *RunArtifacts, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("BACKTEST SUMMARY\n")
	sb.WriteString("================\n\n")
	sb.WriteString(fmt.Sprintf("Run ID:     %s\n", a.RunID))
	sb.WriteString(fmt.Sprintf("Strategy:   %s\n", a.Strategy))
	sb.WriteString(fmt.Sprintf("Symbol:     %s\n", a.Symbol))
	sb.WriteString(fmt.Sprintf("Generated:  %s\n\n", generatedAt.Format(time.RFC3339)))

	r := a.Report

	sb.WriteString("Equity\n")
	sb.WriteString("------\n")
	sb.WriteString(fmt.Sprintf("Initial Capital:    %14.2f\n", r.InitialCapital))
	sb.WriteString(fmt.Sprintf("Final Equity:       %14.2f\n", r.FinalEquity))
	sb.WriteString(fmt.Sprintf("Total Return:       %13.2f%%\n", r.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("CAGR:               %13.2f%%\n", r.CAGR*100))
	sb.WriteString(fmt.Sprintf("Trading Days:       %14d\n\n", r.TradingDays))

	sb.WriteString("Risk\n")
	sb.WriteString("----\n")
	sb.WriteString(fmt.Sprintf("Annualized Vol:     %13.2f%%\n", r.AnnualizedVolatility*100))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:       %14.2f\n", r.SharpeRatio))
	sb.WriteString(fmt.Sprintf("Sortino Ratio:      %14.2f\n", r.SortinoRatio))
	sb.WriteString(fmt.Sprintf("Calmar Ratio:       %14.2f\n", r.CalmarRatio))
	sb.WriteString(fmt.Sprintf("Max Drawdown:       %13.2f%%\n", r.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("Max Drawdown Days:  %14d\n", r.MaxDrawdownDays))
	sb.WriteString(fmt.Sprintf("VaR 95:             %13.2f%%\n", r.VaR95*100))
	sb.WriteString(fmt.Sprintf("CVaR 95:            %13.2f%%\n\n", r.CVaR95*100))

	sb.WriteString("Trades\n")
	sb.WriteString("------\n")
	sb.WriteString(fmt.Sprintf("Fills:              %14d\n", r.NumFills))
	sb.WriteString(fmt.Sprintf("Closing Trades:     %14d\n", r.NumTrades))
	sb.WriteString(fmt.Sprintf("Win Rate:           %13.2f%%\n", r.WinRate*100))
	sb.WriteString(fmt.Sprintf("Avg Win:            %14.2f\n", r.AvgWin))
	sb.WriteString(fmt.Sprintf("Avg Loss:           %14.2f\n", r.AvgLoss))
	sb.WriteString(fmt.Sprintf("Profit Factor:      %14.2f\n", r.ProfitFactor))
	sb.WriteString(fmt.Sprintf("Expectancy:         %14.2f\n", r.Expectancy))
	sb.WriteString(fmt.Sprintf("Total Commission:   %14.2f\n", r.TotalCommission))

	return sb.String()
}
