package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Realtime metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of live WebSocket sessions",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ride_rooms_active",
			Help: "Current number of active ride rooms",
		},
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_dispatched_total",
			Help: "Total inbound WebSocket events routed to handlers",
		},
		[]string{"event_type"},
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_room_broadcasts_total",
			Help: "Total room broadcasts performed",
		},
	)

	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_send_failures_total",
			Help: "Total failed WebSocket sends (timeout or closed handle)",
		},
	)

	StaleSessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_stale_sessions_evicted_total",
			Help: "Sessions evicted by the heartbeat cleanup loop",
		},
	)

	// Matching metrics
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driver_matches_total",
			Help: "Driver assignment attempts by outcome",
		},
		[]string{"outcome"},
	)

	PendingAssignments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_assignments",
			Help: "Rides currently waiting for a driver",
		},
	)
)
