package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/omr/internal/pipeline"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omr_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scan processing metrics
	scanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omr_scan_requests_total",
			Help: "Total number of scan requests",
		},
		[]string{"type", "status"}, // type: image, pdf, websocket
	)

	scanProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omr_scan_processing_duration_seconds",
			Help:    "Sheet scan duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	scanAnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omr_scan_answers_total",
			Help: "Classified answers by outcome",
		},
		[]string{"status"}, // status: selected, no_answer, ambiguous
	)

	registrationResidual = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omr_registration_residual_pixels",
			Help:    "Mean fiducial registration residual in pixels",
			Buckets: []float64{.25, .5, 1, 2, 3, 5, 10},
		},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omr_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "omr_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omr_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// recordScanResult updates per-answer and registration metrics after a scan.
func recordScanResult(res *pipeline.Result) {
	if res == nil {
		return
	}
	if res.Answers != nil {
		for _, a := range res.Answers.Answers {
			scanAnswersTotal.WithLabelValues(string(a.Status)).Inc()
		}
	}
	if res.Registration != nil {
		registrationResidual.Observe(res.Registration.Residual)
	}
}
