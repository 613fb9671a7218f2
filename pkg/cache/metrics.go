package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheSize tracks the size of the last value written, by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_cache_size_bytes",
			Help: "Size in bytes of the most recently cached value",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "ttl"
	)

	// ReconnectAttempts tracks reconnect pings issued while Redis is unreachable
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_reconnect_attempts_total",
			Help: "Total number of Redis reconnect attempts",
		},
	)

	// ReconnectBackoff tracks the wait between reconnect attempts
	ReconnectBackoff = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_cache_reconnect_backoff_seconds",
			Help:    "Backoff duration between Redis reconnect attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	// Connected is 1 while the supervisor considers Redis reachable
	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_cache_connected",
			Help: "Whether Redis is currently reachable (1) or not (0)",
		},
	)
)
