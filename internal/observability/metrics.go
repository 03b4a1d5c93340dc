// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	BarsProcessed    prometheus.Counter
	SignalsGenerated *prometheus.CounterVec
	DaysCompleted    prometheus.Counter
	RunDuration      prometheus.Histogram

	// Order flow metrics
	OrdersSubmitted prometheus.Counter
	OrdersFilled    prometheus.Counter
	OrdersCanceled  prometheus.Counter
	RiskRejections  *prometheus.CounterVec
	SquareOffFills  prometheus.Counter

	// Portfolio metrics
	Equity   prometheus.Gauge
	Cash     prometheus.Gauge
	Leverage prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "daywise_backtester"
	}

	return &Metrics{
		BarsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bars_processed_total",
			Help:      "Total number of bars processed",
		}),
		SignalsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "signals_generated_total",
			Help:      "Total number of strategy signals by type",
		}, []string{"signal_type"}),
		DaysCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "days_completed_total",
			Help:      "Total number of trading days rolled up",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of completed runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),

		OrdersSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "submitted_total",
			Help:      "Total number of orders submitted",
		}),
		OrdersFilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "filled_total",
			Help:      "Total number of orders filled",
		}),
		OrdersCanceled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "canceled_total",
			Help:      "Total number of orders canceled unfilled",
		}),
		RiskRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Total number of risk rejections by constraint",
		}, []string{"constraint"}),
		SquareOffFills: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "square_off_fills_total",
			Help:      "Total number of end-of-day square-off fills",
		}),

		Equity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "equity",
			Help:      "Current portfolio equity",
		}),
		Cash: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "cash",
			Help:      "Current portfolio cash",
		}),
		Leverage: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "leverage",
			Help:      "Current gross leverage",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Database query errors by database and operation",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBar increments the bars processed counter.
func RecordBar() {
	DefaultMetrics.BarsProcessed.Inc()
}

// RecordSignal increments the signal counter for a signal type.
func RecordSignal(signalType string) {
	DefaultMetrics.SignalsGenerated.WithLabelValues(signalType).Inc()
}

// RecordDayCompleted increments the completed-days counter.
func RecordDayCompleted() {
	DefaultMetrics.DaysCompleted.Inc()
}

// RecordRunDuration records a completed run's wall-clock duration.
func RecordRunDuration(seconds float64) {
	DefaultMetrics.RunDuration.Observe(seconds)
}

// RecordOrderSubmitted increments the submitted orders counter.
func RecordOrderSubmitted() {
	DefaultMetrics.OrdersSubmitted.Inc()
}

// RecordOrderResolved increments the filled or canceled counter.
func RecordOrderResolved(filled bool) {
	if filled {
		DefaultMetrics.OrdersFilled.Inc()
	} else {
		DefaultMetrics.OrdersCanceled.Inc()
	}
}

// RecordRiskRejection records a rejection by constraint name.
func RecordRiskRejection(constraint string) {
	DefaultMetrics.RiskRejections.WithLabelValues(constraint).Inc()
}

// RecordSquareOffFills adds to the square-off fill counter.
func RecordSquareOffFills(n int) {
	DefaultMetrics.SquareOffFills.Add(float64(n))
}

// UpdatePortfolio updates the portfolio state gauges.
func UpdatePortfolio(equity, cash, leverage float64) {
	DefaultMetrics.Equity.Set(equity)
	DefaultMetrics.Cash.Set(cash)
	DefaultMetrics.Leverage.Set(leverage)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
