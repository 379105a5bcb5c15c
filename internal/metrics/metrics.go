// Package metrics defines Prometheus metrics for the adcmdr server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adcmdr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcmdr_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcmdr_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcmdr_exports_total",
			Help: "Bundle exports by result",
		},
		[]string{"result"},
	)

	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcmdr_imports_total",
			Help: "Bundle imports by result",
		},
		[]string{"result"},
	)

	ImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcmdr_import_rows_total",
			Help: "Imported rows by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	StatsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcmdr_stats_deleted_total",
			Help: "Deleted impression and click rows by scope",
		},
		[]string{"scope"},
	)

	BundlesOnDisk = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "adcmdr_bundles_on_disk",
			Help: "Bundle archives currently in the export directory",
		},
	)
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFail    = "fail"
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		ExportsTotal, ImportsTotal, ImportRowsTotal,
		StatsDeletedTotal, BundlesOnDisk,
	)
}
