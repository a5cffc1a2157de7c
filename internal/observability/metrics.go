package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Gate metrics
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Navigation verdicts issued, by outcome",
		},
		[]string{"verdict"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gate_sessions_active",
			Help: "Number of live access sessions",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_sessions_ended_total",
			Help: "Sessions ended, by disposition",
		},
		[]string{"disposition"},
	)

	TemporaryBlocksSet = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_temporary_blocks_total",
			Help: "Temporary site cool-downs set",
		},
	)

	// Browser link metrics
	BrowserConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "browser_connections_active",
			Help: "Number of connected browser event channels",
		},
	)

	TabCommandsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browser_tab_commands_sent_total",
			Help: "Tab commands pushed to the browser, by type",
		},
		[]string{"type"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open database connections",
		},
	)
)
