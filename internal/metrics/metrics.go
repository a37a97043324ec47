// Package metrics exposes Prometheus collectors for the string finder.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcome label values.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeError     = "error"
)

// Job lifecycle label values.
const (
	JobCreated  = "created"
	JobFinished = "finished"
	JobStopped  = "stopped"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringfinder_fetches_total",
			Help: "Total number of URL fetches, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stringfinder_retries_total",
			Help: "Total number of URLs granted a retry fetch.",
		},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringfinder_jobs_total",
			Help: "Total number of job lifecycle events, labeled by status.",
		},
		[]string{"status"},
	)

	batchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stringfinder_batch_duration_seconds",
			Help:    "Histogram of batch processing latencies, including the retry round.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 45},
		},
	)

	batchURLs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stringfinder_batch_urls_total",
			Help: "Total number of URLs processed by batches.",
		},
	)

	rateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stringfinder_rate_limit_wait_seconds",
			Help:    "Histogram of time fetches spent waiting on the per-host rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 20, 45},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch outcome.
func ObserveFetch(outcome string) {
	fetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetries counts URLs entering the retry round.
func ObserveRetries(n int) {
	if n > 0 {
		retriesTotal.Add(float64(n))
	}
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveBatch records one processed batch.
func ObserveBatch(size int, duration time.Duration) {
	batchURLs.Add(float64(size))
	batchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitWait records a rate limiter delay.
func ObserveRateLimitWait(d time.Duration) {
	rateLimitWaitSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
