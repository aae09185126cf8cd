// Package metrics exposes Prometheus collectors for the sync service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal              *prometheus.CounterVec
	syncPetsFoundTotal         *prometheus.CounterVec
	syncPetsAddedTotal         *prometheus.CounterVec
	syncPetsRemovedTotal       *prometheus.CounterVec
	syncErrorsTotal            *prometheus.CounterVec
	syncRunDurationSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total number of ingestion runs, labeled by source and final status.",
			},
			[]string{"source", "status"},
		)

		syncPetsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_pets_found_total",
				Help: "Total number of pets returned by fetchers, labeled by source.",
			},
			[]string{"source"},
		)

		syncPetsAddedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_pets_added_total",
				Help: "Total number of freshly inserted pet rows, labeled by source.",
			},
			[]string{"source"},
		)

		syncPetsRemovedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_pets_removed_total",
				Help: "Total number of pets marked removed by the staleness sweep, labeled by source.",
			},
			[]string{"source"},
		)

		syncErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_errors_total",
				Help: "Total number of recorded run errors, labeled by source and error type.",
			},
			[]string{"source", "type"},
		)

		syncRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_run_duration_seconds",
				Help:    "Histogram of full ingestion run durations, labeled by source.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"source"},
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run with its aggregate counts.
func ObserveRun(source, status string, found, added, removed int, duration time.Duration) {
	syncRunsTotal.WithLabelValues(source, status).Inc()
	syncPetsFoundTotal.WithLabelValues(source).Add(float64(found))
	syncPetsAddedTotal.WithLabelValues(source).Add(float64(added))
	syncPetsRemovedTotal.WithLabelValues(source).Add(float64(removed))
	syncRunDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveRunError increments the error counter for one recorded error.
func ObserveRunError(source, errorType string) {
	syncErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
