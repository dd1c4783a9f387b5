package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReportsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_generated_total",
			Help: "Reports produced, by variant and output format",
		},
		[]string{"variant", "format"},
	)

	ExportFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_export_fallbacks_total",
			Help: "PDF exports that fell back to the print-ready page",
		},
		[]string{"variant"},
	)

	ExportRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_export_rejected_total",
			Help: "Exports rejected because another export for the same form was running",
		},
	)

	FormSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "form_sessions_active",
			Help: "Open entry-form sessions held in memory",
		},
	)
)
