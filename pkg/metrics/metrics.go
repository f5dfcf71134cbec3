// Package metrics provides Prometheus instrumentation for the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts handled requests by task and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests by task and status.",
		},
		[]string{"task", "status"}, // status: "success", "invalid", or an error reason
	)

	// GenerationLatency tracks generation latency in seconds, queue wait included.
	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_latency_seconds",
			Help:    "Generation latency in seconds, including time spent queued.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"task", "status"},
	)

	// TokenUsageTotal counts prompt and generated tokens.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_usage_total",
			Help: "Total number of tokens processed.",
		},
		[]string{"direction"}, // "input" or "output"
	)

	// ActiveGenerations is 1 while the model is generating.
	ActiveGenerations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_generations",
			Help: "Number of generations currently running on the model.",
		},
	)

	// QueueDepth tracks requests waiting for the model.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_queue_depth",
			Help: "Number of requests waiting for the model.",
		},
	)

	// CacheLookupsTotal tracks response cache lookups.
	CacheLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of response cache lookups.",
		},
	)

	// CacheHitsTotal tracks response cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of response cache hits.",
		},
	)

	// CircuitBreakerState tracks the model backend circuit breaker.
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state: 0=closed, 1=open, 2=half-open.",
		},
	)

	// ModelLoaded is 1 once the model handle is ready.
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "Whether the model and tokenizer are loaded (1) or not (0).",
		},
	)
)

// RecordCacheLookup records a cache lookup and whether it hit.
func RecordCacheLookup(hit bool) {
	CacheLookupsTotal.Inc()
	if hit {
		CacheHitsTotal.Inc()
	}
}

// SetModelLoaded publishes the model load state.
func SetModelLoaded(loaded bool) {
	if loaded {
		ModelLoaded.Set(1)
		return
	}
	ModelLoaded.Set(0)
}
