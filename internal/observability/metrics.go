// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trading metrics
	TradesSubmitted *prometheus.CounterVec
	TradeOutcomes   *prometheus.CounterVec
	TradesRejected  *prometheus.CounterVec
	TradeDuration   *prometheus.HistogramVec

	// Quote metrics
	QuotesComputed     *prometheus.CounterVec
	QuotePointsSampled prometheus.Counter
	QuotePointsStored  prometheus.Counter

	// Lifecycle metrics
	LifecycleSteps       *prometheus.CounterVec
	LifecycleResolutions *prometheus.CounterVec
	VRFPolls             prometheus.Counter

	// Ledger metrics
	RPCCallLatency           *prometheus.HistogramVec
	RPCCallErrors            *prometheus.CounterVec
	ConfirmationWaitDuration prometheus.Histogram
	HeadsReceived            prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSample prometheus.Gauge
	UptimeSeconds        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sof_orchestrator"
	}

	return &Metrics{
		// Trading metrics
		TradesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_submitted_total",
			Help:      "Total number of trade transactions submitted by side",
		}, []string{"side"}),
		TradeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_outcomes_total",
			Help:      "Total number of classified trade outcomes by side and outcome",
		}, []string{"side", "outcome"}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_rejected_total",
			Help:      "Total number of trades rejected before submission by reason",
		}, []string{"side", "reason"}),
		TradeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_duration_seconds",
			Help:      "End-to-end trade execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"side"}),

		// Quote metrics
		QuotesComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quotes_computed_total",
			Help:      "Total number of quotes computed by side",
		}, []string{"side"}),
		QuotePointsSampled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quote_points_sampled_total",
			Help:      "Total number of curve pricing samples taken",
		}),
		QuotePointsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quote_points_stored_total",
			Help:      "Total number of curve pricing samples stored",
		}),

		// Lifecycle metrics
		LifecycleSteps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "steps_total",
			Help:      "Total number of lifecycle steps executed by step and status",
		}, []string{"step", "status"}),
		LifecycleResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "resolutions_total",
			Help:      "Total number of season resolution runs by result",
		}, []string{"result"}),
		VRFPolls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "vrf_polls_total",
			Help:      "Total number of VRF fulfillment polls",
		}),

		// Ledger metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of JSON-RPC call errors by method",
		}, []string{"method"}),
		ConfirmationWaitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for transaction confirmations in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 90, 120, 300},
		}),
		HeadsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "heads_received_total",
			Help:      "Total number of new-head notifications received",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSample: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sample_timestamp",
			Help:      "Unix timestamp of the last successful quote sample",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeSubmitted increments the submitted-trades counter.
func RecordTradeSubmitted(side string) {
	DefaultMetrics.TradesSubmitted.WithLabelValues(side).Inc()
}

// RecordTradeOutcome records the classified outcome of a trade.
func RecordTradeOutcome(side, outcome string, durationSeconds float64) {
	DefaultMetrics.TradeOutcomes.WithLabelValues(side, outcome).Inc()
	DefaultMetrics.TradeDuration.WithLabelValues(side).Observe(durationSeconds)
}

// RecordTradeRejected records a trade stopped before submission.
func RecordTradeRejected(side, reason string) {
	DefaultMetrics.TradesRejected.WithLabelValues(side, reason).Inc()
}

// RecordQuoteComputed increments the computed-quotes counter.
func RecordQuoteComputed(side string) {
	DefaultMetrics.QuotesComputed.WithLabelValues(side).Inc()
}

// RecordLifecycleStep records one lifecycle step execution.
func RecordLifecycleStep(step, status string) {
	DefaultMetrics.LifecycleSteps.WithLabelValues(step, status).Inc()
}

// RecordResolution records the terminal result of a resolution run.
func RecordResolution(result string) {
	DefaultMetrics.LifecycleResolutions.WithLabelValues(result).Inc()
}

// RecordRPCLatency records JSON-RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// TrackUptime increments the uptime counter every second until ctx
// ends. Run it as a goroutine from the process entry point.
func TrackUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			DefaultMetrics.UptimeSeconds.Inc()
		}
	}
}
