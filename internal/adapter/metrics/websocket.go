package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for the connection registry.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	GreetingsSent     prometheus.Counter
	GreetingFailures  prometheus.Counter
	MessagesReceived  prometheus.Counter
	Broadcasts        prometheus.Counter
	Deliveries        prometheus.Counter
	SendFailures      prometheus.Counter
	BroadcastDuration prometheus.Histogram
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      name,
			Help:      help,
		})
	}

	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of connections currently in the registry.",
		}),
		GreetingsSent:    counter("greetings_sent_total", "Total greetings delivered to newly opened connections."),
		GreetingFailures: counter("greeting_failures_total", "Total greetings that could not be delivered."),
		MessagesReceived: counter("messages_received_total", "Total inbound messages observed."),
		Broadcasts:       counter("broadcasts_total", "Total broadcast operations."),
		Deliveries:       counter("deliveries_total", "Total messages delivered by broadcasts."),
		SendFailures:     counter("send_failures_total", "Total failed per-connection broadcast sends."),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to fan one broadcast out to every registered connection.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.GreetingsSent,
		m.GreetingFailures,
		m.MessagesReceived,
		m.Broadcasts,
		m.Deliveries,
		m.SendFailures,
		m.BroadcastDuration,
	)
	return m
}
