// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Gateway metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthchat_ws_sessions_active",
			Help: "Currently open chat sessions",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthchat_ws_auth_failures_total",
			Help: "Connections rejected at handshake",
		},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthchat_turns_total",
			Help: "Chat turns by outcome",
		},
		[]string{"outcome"}, // "completed", "upstream_error", "disconnected", "persist_error"
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthchat_turn_duration_seconds",
			Help:    "Time from request to last fragment",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FragmentsStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthchat_fragments_streamed_total",
			Help: "Reply fragments relayed to clients",
		},
	)

	// Upload metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthchat_uploads_total",
			Help: "Context uploads by result",
		},
		[]string{"result"}, // "ok", "unsupported", "error"
	)
)
