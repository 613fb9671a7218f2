// Package metrics provides the Prometheus registry and HTTP-level metrics of
// the catalog service. Domain metrics are defined in their respective
// packages (store, cache, catalog) to maintain modularity and avoid circular
// dependencies.
//
// This package also documents every metric the service exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

var (
	// HTTPRequests tracks handled requests by route template, status code and method.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "code", "method"},
	)

	// HTTPRequestDuration tracks request latency by route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Handler returns the scrape endpoint for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// HTTP Metrics (pkg/metrics):
//   - catalog_http_requests_total{route, code, method} (Counter)
//   - catalog_http_request_duration_seconds{route, method} (Histogram)
//   - catalog_http_requests_in_flight (Gauge)
//
// Listing Metrics (pkg/catalog):
//   - catalog_listing_reads_total{source} (Counter): Cached listing reads by source (cache, database)
//   - catalog_listing_cache_fallbacks_total{operation} (Counter): Absorbed cache failures (get, decode, set)
//   - catalog_cache_invalidations_total{result} (Counter): Invalidation attempts (ok, error)
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - catalog_cache_misses_total (Counter): Cache misses
//   - catalog_cache_size_bytes{layer="redis"} (Gauge): Size of the last cached value
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//   - catalog_cache_reconnect_attempts_total (Counter): Failed connectivity checks
//   - catalog_cache_reconnect_backoff_seconds (Histogram): Wait before the next check
//   - catalog_cache_connected (Gauge): 1 while the cache is reachable
//
// Store Metrics (pkg/store):
//   - catalog_store_operations_total{operation, status} (Counter)
//   - catalog_store_operation_duration_seconds{operation} (Histogram)
//
// Example Prometheus Queries:
//
//   # Listing Cache Hit Rate
//   sum(rate(catalog_listing_reads_total{source="cache"}[5m])) /
//   sum(rate(catalog_listing_reads_total[5m]))
//
//   # Failed Invalidations
//   rate(catalog_cache_invalidations_total{result="error"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_http_request_duration_seconds_bucket[5m]))
//
//   # Server Error Rate
//   sum(rate(catalog_http_requests_total{code=~"5.."}[5m]))
