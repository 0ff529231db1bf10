package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tourchat_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tourchat_messages_sent_total",
			Help: "Total messages stored",
		},
	)

	ModerationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourchat_moderation_decisions_total",
			Help: "Moderation decisions by action and outcome",
		},
		[]string{"action", "outcome"}, // outcome is "allow" or the denial reason
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourchat_active_subscriptions",
			Help: "Live message feeds currently open",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"limiter"},
	)

	// Sweeper metrics
	SweepDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourchat_sweep_deletions_total",
			Help: "Documents removed by the sweeper",
		},
		[]string{"job", "kind"}, // kind is "message", "kick" or "room"
	)

	SweepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourchat_sweep_room_failures_total",
			Help: "Per-room failures during a sweep",
		},
		[]string{"job"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourchat_sweep_duration_seconds",
			Help:    "Duration of one sweep run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	GateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourchat_gate_outcomes_total",
			Help: "Room validation gate outcomes",
		},
		[]string{"outcome"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourchat_store_latency_seconds",
			Help:    "Document store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation"},
	)
)
