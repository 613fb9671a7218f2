package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListingReads tracks cached listing reads by where the data came from.
	ListingReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_listing_reads_total",
			Help: "Total number of cached listing reads by source",
		},
		[]string{"source"}, // "cache", "database"
	)

	// ListingCacheFallbacks tracks cache failures absorbed by the read path.
	ListingCacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_listing_cache_fallbacks_total",
			Help: "Total number of cache failures absorbed by the listing read path",
		},
		[]string{"operation"}, // "get", "decode", "set"
	)

	// Invalidations tracks listing invalidation attempts by result.
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "Total number of listing cache invalidation attempts",
		},
		[]string{"result"}, // "ok", "error"
	)
)
