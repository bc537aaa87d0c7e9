package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency per route; run and download
	// requests dominate the upper buckets
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "export_http_request_duration_seconds",
			Help:    "Duration of export API requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_http_requests_total",
			Help: "Total number of export API requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPResponseBytes counts response body bytes, mostly streamed artifacts
	HTTPResponseBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_http_response_bytes_total",
			Help: "Bytes written in export API responses",
		},
		[]string{"method", "route"},
	)
)
