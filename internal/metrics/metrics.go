// Package metrics exposes Prometheus collectors for the documentation crawler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal           *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	fetchRetriesTotal    prometheus.Counter
	persistFailuresTotal prometheus.Counter
	activeWorkers        prometheus.Gauge
	frontierPending      prometheus.Gauge
	rateLimitDelaySec    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrover_pages_total",
				Help: "Pages processed, labeled by source and result.",
			},
			[]string{"source", "result"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docrover_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"source"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docrover_fetch_retries_total",
				Help: "Transient fetch errors retried.",
			},
		)

		persistFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docrover_persist_failures_total",
				Help: "Sink writes that failed.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docrover_active_workers",
				Help: "Workers currently holding a claimed URL.",
			},
		)

		frontierPending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docrover_frontier_pending",
				Help: "URLs queued and not yet claimed.",
			},
		)

		rateLimitDelaySec = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docrover_rate_limit_delay_seconds",
				Help:    "Histogram of per-domain rate limit waits.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"domain"},
		)
	})
}

// PageProcessed counts one processed page with its result label
// ("succeeded" or "failed").
func PageProcessed(source, result string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(source, result).Inc()
	}
}

// ObserveFetchDuration records one fetch latency sample.
func ObserveFetchDuration(source string, d time.Duration) {
	if fetchDurationSeconds != nil {
		fetchDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

// FetchRetried counts one transient-error retry.
func FetchRetried() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// PersistFailed counts one failed sink write.
func PersistFailed() {
	if persistFailuresTotal != nil {
		persistFailuresTotal.Inc()
	}
}

// SetActiveWorkers publishes the active-worker gauge.
func SetActiveWorkers(n int) {
	if activeWorkers != nil {
		activeWorkers.Set(float64(n))
	}
}

// SetFrontierPending publishes the frontier depth gauge.
func SetFrontierPending(n int) {
	if frontierPending != nil {
		frontierPending.Set(float64(n))
	}
}

// ObserveRateLimitDelay records how long a fetch waited on the per-domain
// limiter.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	if rateLimitDelaySec != nil {
		rateLimitDelaySec.WithLabelValues(domain).Observe(d.Seconds())
	}
}
