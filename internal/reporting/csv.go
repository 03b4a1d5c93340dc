package reporting

import (
	"fmt"
	"strings"
	"time"

	"daywise-backtester/internal/domain"
)

// RenderTradeSheetCSV renders the fill log as a CSV string, one row per
// fill in execution order.
func RenderTradeSheetCSV(fills []*domain.Fill) string {
	var sb strings.Builder

	sb.WriteString("fill_id,order_id,timestamp,symbol,side,quantity,")
	sb.WriteString("raw_price,price,slippage_bps,commission,realized_pnl,eod_square_off\n")

	for _, f := range fills {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%.6f,%.6f,%.2f,%.6f,%.6f,%t\n",
			f.FillID,
			f.OrderID,
			f.Timestamp.UTC().Format(time.RFC3339),
			f.Symbol,
			f.Side,
			f.Quantity,
			f.RawPrice,
			f.Price,
			f.SlippageBps,
			f.Commission,
			f.RealizedPnL,
			f.EODSquareOff,
		))
	}

	return sb.String()
}

// RenderDailyPnLCSV renders the end-of-day rollups as a CSV string,
// one row per trading day in chronological order.
func RenderDailyPnLCSV(daily []*domain.DailyPnL) string {
	var sb strings.Builder

	sb.WriteString("date,starting_equity,ending_equity,return,")
	sb.WriteString("realized_pnl,unrealized_pnl,commission,num_fills\n")

	for _, d := range daily {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.8f,%.6f,%.6f,%.6f,%d\n",
			d.Date.UTC().Format("2006-01-02"),
			d.StartingEquity,
			d.EndingEquity,
			d.Return(),
			d.RealizedPnL,
			d.UnrealizedPnL,
			d.Commission,
			d.NumFills,
		))
	}

	return sb.String()
}

// RenderEquityCurveCSV renders the per-bar portfolio snapshots as a CSV
// string. This is the finest-grained equity series the run produces.
func RenderEquityCurveCSV(snapshots []*domain.PortfolioSnapshot) string {
	var sb strings.Builder

	sb.WriteString("timestamp,cash,equity,leverage,open_positions,realized_pnl,unrealized_pnl\n")

	for _, s := range snapshots {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.4f,%d,%.6f,%.6f\n",
			s.Timestamp.UTC().Format(time.RFC3339),
			s.Cash,
			s.Equity,
			s.Leverage,
			s.OpenPositions(),
			s.RealizedPnL,
			s.UnrealizedPnL,
		))
	}

	return sb.String()
}
