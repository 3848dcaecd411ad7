package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convo_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_messages_sent_total",
			Help: "Total messages persisted and broadcast",
		},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_messages_rejected_total",
			Help: "Total message sends rejected",
		},
		[]string{"reason"}, // "validation" or "authorization"
	)

	TypingEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_typing_events_total",
			Help: "Total typing indicator events relayed",
		},
	)

	NotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_notifications_delivered_total",
			Help: "Total out-of-band notifications forwarded to user rooms",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Websocket metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convo_ws_connections_active",
			Help: "Currently open websocket connections",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convo_ws_rooms_active",
			Help: "Rooms with at least one member",
		},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_ws_broadcasts_dropped_total",
			Help: "Events dropped because a connection's send queue was full",
		},
	)

	HandshakesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_ws_handshakes_rejected_total",
			Help: "Websocket handshakes refused for bad credentials",
		},
	)
)
