// Package metrics exposes reservation counters on a private Prometheus
// registry served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/event-reservation/internal/model"
)

// Metrics records admission and transition outcomes. It satisfies
// reservation.Recorder.
type Metrics struct {
	reg             *prometheus.Registry
	admissions      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// New builds the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_admissions_total",
			Help: "Reservation requests by outcome (ok or the lower-cased error code).",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_transitions_total",
			Help: "Reservation status changes by target status and outcome.",
		}, []string{"to", "outcome"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_publish_failures_total",
			Help: "Reservation notifications that could not be published.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.admissions,
		m.transitions,
		m.publishFailures,
	)
	return m
}

func (m *Metrics) Admission(outcome string) {
	m.admissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(to model.ReservationStatus, outcome string) {
	m.transitions.WithLabelValues(string(to), outcome).Inc()
}

func (m *Metrics) PublishFailure() {
	m.publishFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
