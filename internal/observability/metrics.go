package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the bot's Prometheus collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	openTickets prometheus.GaugeFunc
}

// NewMetrics registers collectors. openTickets is sampled on every scrape;
// it may be nil.
func NewMetrics(openTickets func() int) *Metrics {
	registry := prometheus.NewRegistry()
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketbot_transitions_total",
		Help: "Ticket lifecycle operations by action and outcome.",
	}, []string{"action", "outcome"})
	registry.MustRegister(transitions)

	m := &Metrics{registry: registry, transitions: transitions}
	if openTickets != nil {
		m.openTickets = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ticketbot_open_tickets",
			Help: "Tickets currently open.",
		}, func() float64 { return float64(openTickets()) })
		registry.MustRegister(m.openTickets)
	}
	return m
}

// RecordTransition counts one handled interaction.
func (m *Metrics) RecordTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
