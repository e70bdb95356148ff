// Package metrics exposes the engine's Prometheus surface: a generic
// HTTP middleware and database-operation histogram alongside
// counters/gauges/histograms for each of the six running components.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "collection"},
	)

	ComponentTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "component_tick_duration_seconds",
			Help:    "Duration of one Tick() pass for a polling component",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"component"},
	)

	// Block Follower

	FollowerBlocksProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "follower_blocks_processed_total",
			Help: "Total blocks scanned for transfers",
		},
	)

	FollowerLagBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "follower_lag_blocks",
			Help: "Chain tip block number minus the last processed block number",
		},
	)

	FollowerTransfersObservedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "follower_transfers_observed_total",
			Help: "Total transfers observed to a known receiving address",
		},
		[]string{"currency"},
	)

	// Matcher & Confirmation Tracker

	PaymentsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payments_by_status",
			Help: "Current number of payments in each status",
		},
		[]string{"status"},
	)

	PaymentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Total payment status transitions",
		},
		[]string{"from", "to"},
	)

	PaymentTransitionStaleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_transition_stale_total",
			Help: "Total transitions rejected because the expected prior status no longer matched",
		},
	)

	// Webhook Dispatcher

	WebhookAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_attempts_total",
			Help: "Total webhook delivery attempts",
		},
		[]string{"outcome"}, // delivered, retrying, failed_permanent, abandoned
	)

	WebhookDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Webhook HTTP round-trip duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	WebhookQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_queue_depth",
			Help: "Number of webhook attempts currently due for delivery",
		},
	)

	// Sweeper

	SweepTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_transactions_total",
			Help: "Total sweep transactions broadcast",
		},
		[]string{"currency", "outcome"}, // outcome: broadcast, confirmed, failed
	)

	SweptAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swept_amount_total",
			Help: "Total amount swept to the master wallet, as a float approximation of the decimal amount",
		},
		[]string{"currency"},
	)

	SweepRecoveryResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_recovery_resets_total",
			Help: "Total addresses whose swept flag was reset by the recovery pass after an unconfirmed sweep",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the engine's operator-facing HTTP surface
// (health checks, /metrics itself).
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func normalizePath(path string) string {
	if len(path) > 50 {
		return path[:50]
	}
	return path
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordDBOperation(operation, collection string, duration time.Duration) {
	DatabaseOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

func RecordTick(component string, duration time.Duration) {
	ComponentTickDuration.WithLabelValues(component).Observe(duration.Seconds())
}

func RecordTransition(from, to string) {
	PaymentTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordWebhookAttempt(outcome string, duration time.Duration) {
	WebhookAttemptsTotal.WithLabelValues(outcome).Inc()
	WebhookDeliveryDuration.Observe(duration.Seconds())
}

func RecordSweep(currency, outcome string, amount float64) {
	SweepTransactionsTotal.WithLabelValues(currency, outcome).Inc()
	if outcome == "confirmed" {
		SweptAmountTotal.WithLabelValues(currency).Add(amount)
	}
}
