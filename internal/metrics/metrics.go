// Package metrics exposes Prometheus collectors for the pitch crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes used as the outcome label.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcrawler_fetches_total",
			Help: "Total number of page fetches, labeled by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pitchcrawler_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	rowsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcrawler_rows_extracted_total",
			Help: "Total number of records extracted from fetched pages, labeled by kind.",
		},
		[]string{"kind"},
	)

	rowsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcrawler_rows_dropped_total",
			Help: "Total number of table rows dropped during extraction, labeled by kind.",
		},
		[]string{"kind"},
	)

	rowsPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcrawler_rows_persisted_total",
			Help: "Total number of rows newly inserted, labeled by table.",
		},
		[]string{"table"},
	)

	batchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcrawler_batch_failures_total",
			Help: "Total number of monthly batches that could not be persisted, labeled by table.",
		},
		[]string{"table"},
	)

	workerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitchcrawler_worker_failures_total",
			Help: "Total number of worker invocations that failed or panicked, labeled by stage.",
		},
		[]string{"stage"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitchcrawler_active_workers",
			Help: "Number of worker invocations currently running.",
		},
	)

	fetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pitchcrawler_fetch_retries_total",
			Help: "Total number of fetch retries scheduled.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pitchcrawler_rate_limit_delay_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one page fetch for a pipeline stage.
func ObserveFetch(stage string, err error, duration time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	fetchesTotal.WithLabelValues(stage, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveExtracted adds n extracted records of the given kind.
func ObserveExtracted(kind string, n int) {
	if n > 0 {
		rowsExtractedTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveDropped adds n dropped rows of the given kind.
func ObserveDropped(kind string, n int) {
	if n > 0 {
		rowsDroppedTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObservePersisted adds n inserted rows for table.
func ObservePersisted(table string, n int64) {
	if n > 0 {
		rowsPersistedTotal.WithLabelValues(table).Add(float64(n))
	}
}

// ObserveBatchFailure counts a batch that failed to persist.
func ObserveBatchFailure(table string) {
	batchFailuresTotal.WithLabelValues(table).Inc()
}

// ObserveWorkerFailure counts a failed worker invocation.
func ObserveWorkerFailure(stage string) {
	workerFailuresTotal.WithLabelValues(stage).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRetry counts a scheduled fetch retry.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
