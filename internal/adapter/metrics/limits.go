package metrics

import "github.com/prometheus/client_golang/prometheus"

// LimitMetrics holds Prometheus metrics for WebSocket admission control.
type LimitMetrics struct {
	Rejections *prometheus.CounterVec
	Admitted   prometheus.Counter
}

// NewLimitMetrics creates and registers admission metrics on the given registry.
func NewLimitMetrics(reg prometheus.Registerer) *LimitMetrics {
	m := &LimitMetrics{
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejected_connections_total",
			Help:      "Total WebSocket connections rejected, by limit reason.",
		}, []string{"reason"}),
		Admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "admitted_connections_total",
			Help:      "Total WebSocket connections admitted past the limiter.",
		}),
	}

	reg.MustRegister(m.Rejections, m.Admitted)
	return m
}
