// Package metrics groups the Prometheus instruments used by the tracker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes.
const (
	PollOK            = "ok"
	PollTransport     = "transport_error"
	PollNormalization = "normalization_error"
	PollStale         = "stale"
)

// Registration outcomes.
const (
	RegistrationOK       = "ok"
	RegistrationConflict = "conflict"
	RegistrationInvalid  = "invalid_email"
	RegistrationFailed   = "failed"
)

// Metrics groups all Prometheus instruments used by the tracker. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	Polls              *prometheus.CounterVec
	PollLatency        prometheus.Histogram
	TerminalEvents     *prometheus.CounterVec
	NotificationOffers prometheus.Counter
	Registrations      *prometheus.CounterVec
	gatherer           prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. A nil reg uses the default
// registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of task tracking sessions currently polling.",
		}),
		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Status polls by outcome.",
		}, []string{"outcome"}),
		PollLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_latency_ms",
			Help:      "Latency of status requests in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		TerminalEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminal_events_total",
			Help:      "Terminal callbacks fired by final state.",
		}, []string{"state"}),
		NotificationOffers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_offers_total",
			Help:      "Email notification offers made.",
		}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_registrations_total",
			Help:      "Email notification registrations by outcome.",
		}, []string{"outcome"}),
		gatherer: gatherer,
	}
}

// ObservePoll counts a finished poll and records its latency.
func (m *Metrics) ObservePoll(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(outcome).Inc()
	m.PollLatency.Observe(float64(d.Milliseconds()))
}

// CountTerminal counts a fired terminal callback.
func (m *Metrics) CountTerminal(state string) {
	if m == nil {
		return
	}
	m.TerminalEvents.WithLabelValues(state).Inc()
}

// CountOffer counts a notification offer.
func (m *Metrics) CountOffer() {
	if m == nil {
		return
	}
	m.NotificationOffers.Inc()
}

// CountRegistration counts a registration attempt by outcome.
func (m *Metrics) CountRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionStopped decrements the active session gauge.
func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// Handler serves the registry the instruments were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
