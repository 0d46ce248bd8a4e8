// Package metrics holds the Prometheus collectors shared by the shortener.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ProviderCalls counts calls to the shortening provider by result
	// (success, provider_error, network_error, exhausted).
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_provider_calls_total",
			Help: "Calls made to the shortening provider.",
		},
		[]string{"result"},
	)

	// CacheLookups counts cache lookups by result (hit, miss, ambiguous, error).
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_cache_lookups_total",
			Help: "Cache lookups by long link.",
		},
		[]string{"result"},
	)

	// ReachabilityChecks counts link checks by result (reachable, unreachable, error).
	ReachabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_reachability_checks_total",
			Help: "Reachability checks performed on allow-listed links.",
		},
		[]string{"result"},
	)

	// Tokens counts processed tokens by outcome.
	Tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_tokens_total",
			Help: "Processed text tokens by outcome.",
		},
		[]string{"outcome"},
	)

	// ProcessDuration observes the latency of whole Process calls.
	ProcessDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortener_process_duration_seconds",
			Help:    "Latency of text processing calls.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTPRequests counts API requests by route and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_http_requests_total",
			Help: "HTTP API requests.",
		},
		[]string{"method", "route", "status"},
	)
)

// Init registers all collectors with the default registry. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			ProviderCalls,
			CacheLookups,
			ReachabilityChecks,
			Tokens,
			ProcessDuration,
			HTTPRequests,
		)
	})
}
