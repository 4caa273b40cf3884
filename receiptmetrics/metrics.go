// Package receiptmetrics registers the Prometheus instrumentation shared by
// the write pipeline and the query engine. Metrics are registered against
// the default registry via promauto; services embedding this module expose
// them on whatever handler they already serve.
package receiptmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WriteDuration observes the wall-clock time of one Store call,
	// labelled by outcome: success, validation_error or storage_error.
	WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "receipt_write_duration_seconds",
			Help:    "Duration of receipt write transactions",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"outcome"},
	)

	// RollbackTotal counts compensating rollbacks, labelled by whether
	// every delete succeeded.
	RollbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_write_rollback_total",
			Help: "Total number of compensating rollbacks after partial writes",
		},
		[]string{"result"}, // clean or partial
	)

	// QueryDuration observes the wall-clock time of one Query call.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "receipt_query_duration_seconds",
			Help:    "Duration of receipt queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
	)

	// CacheTotal counts shard-cache lookups by result.
	CacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_query_cache_total",
			Help: "Total number of shard cache lookups",
		},
		[]string{"result"}, // hit or miss
	)

	// PushdownFallbackTotal counts index parts where the server-side scan
	// failed and the engine fell back to client-side filtering.
	PushdownFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "receipt_query_pushdown_fallback_total",
			Help: "Total number of parts scanned client-side after a pushdown failure",
		},
	)
)
