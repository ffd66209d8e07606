package metrics

import "github.com/prometheus/client_golang/prometheus"

// GeocoderMetrics holds Prometheus metrics for upstream geocoding lookups.
type GeocoderMetrics struct {
	Lookups      *prometheus.CounterVec
	SharedCalls  prometheus.Counter
	BreakerState prometheus.Gauge
}

// NewGeocoderMetrics creates and registers geocoder metrics on the given registry.
func NewGeocoderMetrics(reg prometheus.Registerer) *GeocoderMetrics {
	m := &GeocoderMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "lookups_total",
			Help:      "Total geocoding lookups, by outcome.",
		}, []string{"outcome"}),
		SharedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "shared_calls_total",
			Help:      "Total lookups answered by an identical in-flight request.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(m.Lookups, m.SharedCalls, m.BreakerState)
	return m
}
