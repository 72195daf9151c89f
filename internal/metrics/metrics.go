package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "musicez"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"})

	SearchStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_stage_duration_seconds",
		Help:      "Duration of search pipeline stages (local, external, merge, total).",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"stage"})

	SearchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_outcomes_total",
		Help:      "Search requests by terminal state.",
	}, []string{"state"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_cache_hits_total",
		Help:      "Total number of search cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_cache_misses_total",
		Help:      "Total number of search cache misses.",
	})

	CacheErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_cache_errors_total",
		Help:      "Search cache backend errors by operation.",
	}, []string{"operation"})

	EnrichmentOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_outcomes_total",
		Help:      "External enrichment attempts by outcome (ok or skip reason).",
	}, []string{"outcome"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Total requests to the external provider by operation and result status.",
	}, []string{"provider", "operation", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "External provider request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"provider", "operation"})

	ProviderAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_available",
		Help:      "Whether a provider is available (1) or blocked by its circuit breaker (0).",
	}, []string{"provider"})

	ImportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "imports_total",
		Help:      "Catalog imports by result (created, existing, linked, not_found, error).",
	}, []string{"result"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SearchStageDuration,
		SearchOutcomesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheErrorsTotal,
		EnrichmentOutcomesTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderAvailable,
		ImportsTotal,
	)
}
