// Package metrics holds the Prometheus collectors of the realtime core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket active connections
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kanban_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	// Messages by event name, direction is "inbound" or "outbound"
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanban_realtime_events_total",
		Help: "Realtime events by name and direction",
	}, []string{"event", "direction"})

	// Handler aborts by event name and reason (malformed, persistence, panic)
	HandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanban_realtime_handler_failures_total",
		Help: "Mutation handler aborts by event and reason",
	}, []string{"event", "reason"})

	// Deliveries skipped because the connection was closed or saturated
	DroppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanban_realtime_dropped_deliveries_total",
		Help: "Broadcast deliveries skipped for closed or saturated connections",
	})

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanban_audit_failures_total",
		Help: "Audit entries that could not be written",
	})

	// 1 while presence is served from the in-process fallback
	PresenceFallback = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kanban_presence_fallback_active",
		Help: "1 when presence is served from process memory instead of Redis",
	})

	HandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kanban_realtime_handler_duration_seconds",
		Help:    "Mutation handler latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
)
