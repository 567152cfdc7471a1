// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueriesBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracepayload_queries_built_total",
			Help: "Total number of trace queries built, by result",
		},
		[]string{"result"},
	)

	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracepayload_downloads_total",
			Help: "Total number of payload downloads, by outcome",
		},
		[]string{"outcome"},
	)

	DiagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracepayload_assembly_diagnostics_total",
			Help: "Total number of per-row assembly diagnostics, by kind",
		},
		[]string{"kind"},
	)

	BackendQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracepayload_backend_query_duration_seconds",
			Help:    "Duration of trace store queries",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackendRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracepayload_backend_rows_returned",
			Help:    "Number of rows returned per trace store query",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueriesBuiltTotal)
		prometheus.MustRegister(DownloadsTotal)
		prometheus.MustRegister(DiagnosticsTotal)
		prometheus.MustRegister(BackendQueryDuration)
		prometheus.MustRegister(BackendRowsReturned)
	})
}
