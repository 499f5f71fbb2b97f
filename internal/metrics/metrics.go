package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "membership"

// Sweep outcome labels, one per summary counter
const (
	SweepOutcomeProcessed = "processed"
	SweepOutcomeRenewed   = "renewed"
	SweepOutcomeExpired   = "expired"
	SweepOutcomeUnchanged = "unchanged"
	SweepOutcomeSkipped   = "skipped"
	SweepOutcomeErrored   = "errored"
	SweepOutcomeAnomaly   = "anomaly"
)

var (
	metricsOnce sync.Once

	sweepRecords        *prometheus.CounterVec
	sweepDuration       prometheus.Histogram
	transitionsTotal    *prometheus.CounterVec
	gateDecisions       *prometheus.CounterVec
	providerDuration    *prometheus.HistogramVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestTotal    *prometheus.CounterVec
	dbQueryDuration     *prometheus.HistogramVec
	webhookDeadLetters  *prometheus.CounterVec
)

func initMetrics() {
	sweepRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "records_total",
			Help:      "Entitlement records handled by reconciliation sweeps, by outcome.",
		},
		[]string{"outcome"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a full reconciliation sweep.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entitlement",
			Name:      "transitions_total",
			Help:      "Committed entitlement transitions, by history reason.",
		},
		[]string{"reason"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Gate decisions, by kind and whether the store fallback was used.",
		},
		[]string{"kind", "fallback"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "provider_call_duration_seconds",
			Help:      "Billing provider call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "result"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration observed at the API layer.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)

	httpRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the API.",
		},
		[]string{"method", "route", "status"},
	)

	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "postgres",
			Name:      "query_duration_seconds",
			Help:      "Postgres statement latency, by statement kind and whether it ran inside a transaction.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"kind", "in_tx", "result"},
	)

	webhookDeadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "dead_letters_total",
			Help:      "Webhook messages given up after every delivery retry failed.",
		},
		[]string{"handler"},
	)

	prometheus.MustRegister(
		sweepRecords,
		sweepDuration,
		transitionsTotal,
		gateDecisions,
		providerDuration,
		httpRequestDuration,
		httpRequestTotal,
		dbQueryDuration,
		webhookDeadLetters,
	)
}

func ensure() {
	metricsOnce.Do(initMetrics)
}

func AddSweepRecords(outcome string, n int) {
	if n <= 0 {
		return
	}
	ensure()
	sweepRecords.WithLabelValues(outcome).Add(float64(n))
}

func ObserveSweep(elapsed time.Duration) {
	ensure()
	sweepDuration.Observe(elapsed.Seconds())
}

func RecordTransition(reason string) {
	ensure()
	transitionsTotal.WithLabelValues(reason).Inc()
}

func RecordGateDecision(kind string, fallback bool) {
	ensure()
	gateDecisions.WithLabelValues(kind, strconv.FormatBool(fallback)).Inc()
}

func ObserveProviderCall(operation string, err error, elapsed time.Duration) {
	ensure()
	result := "ok"
	if err != nil {
		result = "error"
	}
	providerDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	ensure()
	code := strconv.Itoa(status)
	httpRequestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	httpRequestTotal.WithLabelValues(method, route, code).Inc()
}

func ObserveDBQuery(kind string, inTx bool, err error, elapsed time.Duration) {
	ensure()
	result := "ok"
	if err != nil {
		result = "error"
	}
	dbQueryDuration.WithLabelValues(kind, strconv.FormatBool(inTx), result).Observe(elapsed.Seconds())
}

func RecordWebhookDeadLetter(handler string) {
	ensure()
	webhookDeadLetters.WithLabelValues(handler).Inc()
}

// Handler exposes the default registry, registering the collectors first if needed
func Handler() http.Handler {
	ensure()
	return promhttp.Handler()
}
