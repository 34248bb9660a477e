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
	// Request metrics
	TradeRequests    *prometheus.CounterVec
	WindowsValidated prometheus.Counter
	WindowsRejected  *prometheus.CounterVec
	RowsServed       prometheus.Counter
	RequestDuration  *prometheus.HistogramVec

	// Provider metrics
	ProviderCalls       *prometheus.CounterVec
	ProviderCallLatency prometheus.Histogram

	// Feed metrics
	FeedSubscriptions prometheus.Gauge
	FeedRowsPushed    prometheus.Counter
	FeedPollErrors    prometheus.Counter

	// Trade log metrics
	TradeLogInserts prometheus.Counter
	TradeLogErrors  prometheus.Counter
	TradeLogPrunes  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sol_trade_feed"
	}

	return &Metrics{
		TradeRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "trade_requests_total",
			Help:      "Total number of POST /trades requests by outcome",
		}, []string{"outcome"}),
		WindowsValidated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "horizon",
			Name:      "windows_validated_total",
			Help:      "Total number of windows accepted by the validator",
		}),
		WindowsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "horizon",
			Name:      "windows_rejected_total",
			Help:      "Total number of windows rejected by reason",
		}, []string{"reason"}),
		RowsServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rows_served_total",
			Help:      "Total number of trade rows served to clients",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration by endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of provider queries by outcome",
		}, []string{"outcome"}),
		ProviderCallLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Provider query latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		FeedSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscriptions",
			Help:      "Current number of live feed subscriptions",
		}),
		FeedRowsPushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rows_pushed_total",
			Help:      "Total number of rows pushed over the live feed",
		}),
		FeedPollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "poll_errors_total",
			Help:      "Total number of failed feed polls",
		}),

		TradeLogInserts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradelog",
			Name:      "inserts_total",
			Help:      "Total number of rows appended to the trade log",
		}),
		TradeLogErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradelog",
			Name:      "errors_total",
			Help:      "Total number of trade log write failures",
		}),
		TradeLogPrunes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tradelog",
			Name:      "prunes_total",
			Help:      "Total number of trade log prune runs",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeRequest increments the trade request counter for an outcome.
func RecordTradeRequest(outcome string) {
	DefaultMetrics.TradeRequests.WithLabelValues(outcome).Inc()
}

// RecordWindowValidated increments the accepted-windows counter.
func RecordWindowValidated() {
	DefaultMetrics.WindowsValidated.Inc()
}

// RecordWindowRejected increments the rejected-windows counter.
func RecordWindowRejected(reason string) {
	DefaultMetrics.WindowsRejected.WithLabelValues(reason).Inc()
}

// RecordRowsServed adds served rows to the counter.
func RecordRowsServed(n int) {
	DefaultMetrics.RowsServed.Add(float64(n))
}

// RecordRequestDuration records handling duration for an endpoint.
func RecordRequestDuration(endpoint string, seconds float64) {
	DefaultMetrics.RequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordProviderCall records one provider query.
func RecordProviderCall(outcome string, seconds float64) {
	DefaultMetrics.ProviderCalls.WithLabelValues(outcome).Inc()
	DefaultMetrics.ProviderCallLatency.Observe(seconds)
}

// UpdateFeedSubscriptions sets the live subscription gauge.
func UpdateFeedSubscriptions(n int) {
	DefaultMetrics.FeedSubscriptions.Set(float64(n))
}

// RecordFeedRowsPushed adds pushed rows to the counter.
func RecordFeedRowsPushed(n int) {
	DefaultMetrics.FeedRowsPushed.Add(float64(n))
}

// RecordFeedPollError increments the failed-poll counter.
func RecordFeedPollError() {
	DefaultMetrics.FeedPollErrors.Inc()
}

// RecordTradeLogInsert records a trade log append.
func RecordTradeLogInsert(rows int, err error) {
	if err != nil {
		DefaultMetrics.TradeLogErrors.Inc()
		return
	}
	DefaultMetrics.TradeLogInserts.Add(float64(rows))
}

// RecordTradeLogPrune increments the prune counter.
func RecordTradeLogPrune() {
	DefaultMetrics.TradeLogPrunes.Inc()
}
