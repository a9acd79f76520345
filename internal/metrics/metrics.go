package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gauntlet_engine_requests_total",
			Help: "Total number of calls made to the execution engine",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, unreachable, reported, protocol, error
	)

	EngineLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gauntlet_engine_request_duration_seconds",
			Help:    "Engine round trip latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gauntlet_cache_lookups_total",
			Help: "Memoization cache lookups by cache name and result",
		},
		[]string{"cache", "result"}, // result: hit, miss, shared, error
	)

	TestVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gauntlet_test_verdicts_total",
			Help: "Test cases evaluated by the harness",
		},
		[]string{"language", "verdict"}, // verdict: passed, failed
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gauntlet_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)
)
