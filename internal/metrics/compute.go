// Package metrics computes performance statistics from a completed
// run: return, risk and trade-level numbers, all derived from the
// daily PnL sequence and the fill log.
package metrics

import (
	"math"
	"sort"

	"daywise-backtester/internal/domain"
)

const tradingDaysPerYear = 252
const calendarDaysPerYear = 365.25

// Compute calculates the full performance report. dailyPnL must be in
// chronological order; fills in execution order.
func Compute(initialCapital float64, dailyPnL []*domain.DailyPnL, fills []*domain.Fill) *domain.PerformanceReport {
	report := &domain.PerformanceReport{
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
		TradingDays:    len(dailyPnL),
		NumFills:       len(fills),
	}
	if len(dailyPnL) > 0 {
		report.FinalEquity = dailyPnL[len(dailyPnL)-1].EndingEquity
	}
	if initialCapital > 0 {
		report.TotalReturn = report.FinalEquity/initialCapital - 1
	}

	// Daily return series drives all risk statistics.
	returns := make([]float64, 0, len(dailyPnL))
	for _, d := range dailyPnL {
		returns = append(returns, d.Return())
	}

	report.CAGR = computeCAGR(initialCapital, report.FinalEquity, dailyPnL)

	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	report.AnnualizedVolatility = stddev * math.Sqrt(tradingDaysPerYear)
	if stddev > 0 {
		report.SharpeRatio = mean / stddev * math.Sqrt(tradingDaysPerYear)
	}
	report.SortinoRatio = computeSortino(returns, mean)

	report.MaxDrawdown, report.MaxDrawdownDays = computeMaxDrawdown(dailyPnL)
	if report.MaxDrawdown > 0 {
		report.CalmarRatio = report.CAGR / report.MaxDrawdown
	}

	if len(returns) > 0 {
		sorted := make([]float64, len(returns))
		copy(sorted, returns)
		sort.Float64s(sorted)
		report.VaR95 = computePercentile(sorted, 0.05)
		report.CVaR95 = computeCVaR(sorted, report.VaR95)
	}

	computeTradeStats(report, fills)
	return report
}

// computeCAGR annualizes the total return over the calendar span of
// the run's trading days.
func computeCAGR(initial, final float64, dailyPnL []*domain.DailyPnL) float64 {
	if initial <= 0 || final <= 0 || len(dailyPnL) < 2 {
		return 0
	}
	first := dailyPnL[0].Date
	last := dailyPnL[len(dailyPnL)-1].Date
	days := last.Sub(first).Hours() / 24
	if days <= 0 {
		return 0
	}
	years := days / calendarDaysPerYear
	return math.Pow(final/initial, 1/years) - 1
}

// computeSortino is Sharpe with downside deviation in the denominator.
func computeSortino(returns []float64, mean float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sumSq := 0.0
	downside := 0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			downside++
		}
	}
	if downside == 0 || sumSq == 0 {
		return 0
	}
	downsideDev := math.Sqrt(sumSq / float64(len(returns)-1))
	return mean / downsideDev * math.Sqrt(tradingDaysPerYear)
}

// computeMaxDrawdown finds the worst peak-to-trough equity loss as a
// fraction of the peak, and the longest stretch of days spent below a
// prior peak.
func computeMaxDrawdown(dailyPnL []*domain.DailyPnL) (float64, int) {
	if len(dailyPnL) == 0 {
		return 0, 0
	}

	peak := dailyPnL[0].StartingEquity
	maxDrawdown := 0.0
	maxDays := 0
	daysUnderwater := 0

	for _, d := range dailyPnL {
		equity := d.EndingEquity
		if equity >= peak {
			peak = equity
			daysUnderwater = 0
			continue
		}
		daysUnderwater++
		if daysUnderwater > maxDays {
			maxDays = daysUnderwater
		}
		if peak > 0 {
			drawdown := (peak - equity) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	return maxDrawdown, maxDays
}

// computeCVaR averages the returns at or below the VaR cutoff.
// sorted must be pre-sorted ASC.
func computeCVaR(sorted []float64, varCutoff float64) float64 {
	sum := 0.0
	n := 0
	for _, r := range sorted {
		if r <= varCutoff {
			sum += r
			n++
		}
	}
	if n == 0 {
		return varCutoff
	}
	return sum / float64(n)
}

// computeTradeStats fills the trade-level section of the report. A
// trade here is a closing fill: one that realized PnL or squared off a
// position.
func computeTradeStats(report *domain.PerformanceReport, fills []*domain.Fill) {
	var wins, losses int
	var winSum, lossSum float64

	for _, f := range fills {
		report.TotalCommission += f.Commission
		if f.RealizedPnL == 0 && !f.EODSquareOff {
			continue
		}
		report.NumTrades++
		if f.RealizedPnL > 0 {
			wins++
			winSum += f.RealizedPnL
		} else {
			losses++
			lossSum += -f.RealizedPnL
		}
	}

	if report.NumTrades > 0 {
		report.WinRate = float64(wins) / float64(report.NumTrades)
	}
	if wins > 0 {
		report.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		report.AvgLoss = lossSum / float64(losses)
	}
	if lossSum > 0 {
		report.ProfitFactor = winSum / lossSum
	}
	if report.NumTrades > 0 {
		report.Expectancy = (winSum - lossSum) / float64(report.NumTrades)
	}
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
