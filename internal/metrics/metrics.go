// Package metrics exposes the Prometheus counters and gauges the stream
// tracker and connection processor update as they run. It deliberately
// skips the OpenTelemetry SDK layer: there are no traces or HTTP spans
// in this module, only a handful of long-lived counters, so the plain
// client_golang registry is all that is needed.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric this module reports. Handler and
// ListenAndServe are safe to call on a nil *Registry (Handler returns a
// not-found handler and ListenAndServe returns an error without
// listening); the counter/gauge fields themselves are not nil-safe, so a
// caller that skips construction must also skip referencing them
// directly rather than assume a nil Registry degrades silently
// everywhere.
type Registry struct {
	reg *prometheus.Registry

	UpdatesProcessed  *prometheus.CounterVec
	ResumeLost        prometheus.Counter
	StaleEvicted      *prometheus.CounterVec
	Reconnects        prometheus.Counter
	TrackedMarkets    prometheus.Gauge
}

// New creates a Registry and registers all metrics under namespace.
func New(namespace string) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		UpdatesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_processed_total",
			Help:      "Number of cache updates applied, by channel (market/order).",
		}, []string{"channel"}),
		ResumeLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resume_lost_total",
			Help:      "Number of times a resume clock was discarded after an InvalidClock status.",
		}),
		StaleEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_evicted_total",
			Help:      "Number of closed caches removed by the stale sweep, by channel.",
		}, []string{"channel"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Number of times the connection processor reconnected.",
		}),
		TrackedMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_markets",
			Help:      "Number of markets currently held in the market tracker.",
		}),
	}

	reg.MustRegister(r.UpdatesProcessed, r.ResumeLost, r.StaleEvicted, r.Reconnects, r.TrackedMarkets)
	return r
}

// Handler returns the HTTP handler to mount at the metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ListenAndServe starts a dedicated metrics HTTP server on addr. It
// blocks until the server stops or errors.
func (r *Registry) ListenAndServe(addr string) error {
	if r == nil {
		return fmt.Errorf("metrics: registry is nil")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	return http.ListenAndServe(addr, mux)
}
