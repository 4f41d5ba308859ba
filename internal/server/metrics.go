package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics uses a private registry so multiple servers (tests included) never
// collide on registration.
type metrics struct {
	registry         *prometheus.Registry
	dispatches       prometheus.Counter
	dispatchFailures prometheus.Counter
	streamClients    prometheus.Gauge
	streamEvents     prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "backspace_dispatches_total",
			Help: "Coding tasks successfully handed to a detached worker.",
		}),
		dispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "backspace_dispatch_failures_total",
			Help: "Trigger requests that failed before a worker started.",
		}),
		streamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backspace_stream_clients",
			Help: "Currently connected SSE subscribers.",
		}),
		streamEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "backspace_stream_events_total",
			Help: "Events pushed to SSE subscribers.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
