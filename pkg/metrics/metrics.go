// Package metrics provides observability for Quarry object store adapters
// using Prometheus metrics. All collectors are constructed and registered
// eagerly at package initialization, never lazily on first use, so there is
// no init race to guard against at call sites.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListRequests tracks listing calls against remote stores.
	// Labels: store (instance name), status (success/failure)
	ListRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_list_requests_total",
			Help: "Total number of object listing requests",
		},
		[]string{"store", "status"},
	)

	// ObjectsListed tracks entries returned by successful listings.
	ObjectsListed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_objects_listed_total",
			Help: "Total number of object entries returned by listings",
		},
		[]string{"store"},
	)

	// RangeReads tracks range read calls.
	// Labels: store, status (success/failure/timeout)
	RangeReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_range_reads_total",
			Help: "Total number of range read requests",
		},
		[]string{"store", "status"},
	)

	// BytesRead tracks payload bytes returned to callers.
	BytesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_bytes_read_total",
			Help: "Total bytes returned by range reads",
		},
		[]string{"store"},
	)

	// ReadLatency tracks the distribution of range read latencies.
	ReadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "quarry_read_latency_seconds",
			Help: "Range read latency in seconds",
			Buckets: []float64{
				0.001, // 1ms - local/cached targets
				0.01,  // 10ms - same-zone reads
				0.05,  // 50ms
				0.1,   // 100ms - cross-region
				0.5,   // 500ms
				1,     // 1s - large spans
				5,     // 5s
				10,    // 10s - the default bounded-wait ceiling
			},
		},
		[]string{"store"},
	)
)

// ObserveRead records the outcome of a single range read.
func ObserveRead(store, status string, n int, elapsed time.Duration) {
	RangeReads.WithLabelValues(store, status).Inc()
	if n > 0 {
		BytesRead.WithLabelValues(store).Add(float64(n))
	}
	ReadLatency.WithLabelValues(store).Observe(elapsed.Seconds())
}

// ObserveList records the outcome of a single listing call.
func ObserveList(store, status string, entries int) {
	ListRequests.WithLabelValues(store, status).Inc()
	if entries > 0 {
		ObjectsListed.WithLabelValues(store).Add(float64(entries))
	}
}
