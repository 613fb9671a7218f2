package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperations tracks store calls by operation and outcome.
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "status"}, // status: "ok", "not_found", "error"
	)

	// StoreOperationDuration tracks store latency by operation.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)
)

func observe(operation string, start time.Time, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	StoreOperations.WithLabelValues(operation, status).Inc()
}
