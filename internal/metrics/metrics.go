package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StatusComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procedure_status_computations_total",
			Help: "Total number of procedure statuses computed, by resulting status (count)",
		},
		[]string{"status"},
	)

	StatusEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procedure_status_evaluation_duration_ms",
			Help:    "Duration of a single status evaluation in milliseconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ProcedureCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procedure_cache_lookups_total",
			Help: "Procedure list cache lookups by result (count)",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by method and status code (count)",
		},
		[]string{"method", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"method"},
	)

	LogMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "log_messages_total",
			Help: "Warnings and errors reported, before sampling (count)",
		},
		[]string{"level"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(StatusComputationsTotal)
		prometheus.MustRegister(StatusEvaluationDuration)
		prometheus.MustRegister(ProcedureCacheLookupsTotal)
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(LogMessagesTotal)
	})
}

// ObserveStatus records one status computation
func ObserveStatus(status string, d time.Duration) {
	StatusComputationsTotal.WithLabelValues(status).Inc()
	StatusEvaluationDuration.Observe(float64(d.Microseconds()) / 1000)
}

// ObserveCacheLookup records a cache hit or miss
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	ProcedureCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRequest records a served HTTP request
func ObserveRequest(method string, code int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(float64(d.Microseconds()) / 1000)
}
