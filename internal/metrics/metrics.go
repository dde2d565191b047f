// Package metrics declares the Prometheus instrumentation for resonance.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analytics
	ComputationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_computation_duration_seconds",
			Help:    "Duration of insight computations including store reads",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // personality, stress, recommendations
	)

	ComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_computations_total",
			Help: "Insight computations by operation and outcome",
		},
		[]string{"operation", "outcome"}, // ok, default, validation_error, transient_store_error, error
	)

	// Store
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_store_retries_total",
			Help: "Store reads retried after transient contention",
		},
		[]string{"operation"},
	)

	IngestedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_ingested_events_total",
			Help: "Listening events offered for ingestion by result",
		},
		[]string{"result"}, // inserted, skipped
	)

	// Caches
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"}, // hit, miss
	)

	// Spotify
	SpotifyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_spotify_requests_total",
			Help: "Spotify Web API requests by endpoint and status code",
		},
		[]string{"endpoint", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resonance_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Worker
	WorkerJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_worker_jobs_total",
			Help: "Enrichment jobs by kind and outcome",
		},
		[]string{"kind", "outcome"}, // done, failed, skipped, dropped
	)

	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonance_worker_queue_depth",
			Help: "Enrichment jobs waiting in the queue",
		},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordComputation records the duration and outcome of an insight computation.
func RecordComputation(operation, outcome string, d time.Duration) {
	ComputationDuration.WithLabelValues(operation).Observe(d.Seconds())
	ComputationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordStoreRetry(operation string) {
	StoreRetries.WithLabelValues(operation).Inc()
}

func RecordIngest(inserted, skipped int) {
	IngestedEvents.WithLabelValues("inserted").Add(float64(inserted))
	IngestedEvents.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordCacheLookup counts a hit or miss on the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordSpotifyRequest counts a Spotify request. status 0 means the request
// never produced a response.
func RecordSpotifyRequest(endpoint string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	SpotifyRequests.WithLabelValues(endpoint, label).Inc()
}

// RecordBreakerTransition tracks a circuit breaker moving between states.
// state is 0 closed, 1 half-open, 2 open.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func RecordWorkerJob(kind, outcome string) {
	WorkerJobs.WithLabelValues(kind, outcome).Inc()
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
