// Package observability wires tracing and metrics for the bot.
//
// This file exposes Prometheus instrumentation for the wizard and the relay
// client with careful attention to label cardinality:
//
//   - step:    the wizard operation (start/select_city/select_shop/select_machine)
//   - outcome: ok | stale | error | relay_failure
//   - result:  pulse outcome, ok | failed_on | failed_off
//
// The chosen labels keep cardinality bounded (no user IDs, no terminal
// URLs) while remaining actionable in dashboards. All collectors are safe
// for concurrent use.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the bot's Prometheus collectors. A nil *Metrics is a
// valid "metrics disabled" value for components that nil-check it.
type Metrics struct {
	// wizardSteps counts wizard operations by step and outcome.
	wizardSteps *prometheus.CounterVec

	// pulses counts relay pulses by result.
	pulses *prometheus.CounterVec

	// pulseDuration records the end-to-end pulse time, hold included.
	pulseDuration prometheus.Histogram
}

// NewMetrics constructs the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		wizardSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchbot_wizard_steps_total",
				Help: "Total number of wizard operations by step and outcome.",
			},
			[]string{"step", "outcome"},
		),
		pulses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchbot_relay_pulses_total",
				Help: "Total number of relay pulses by result.",
			},
			[]string{"result"},
		),
		pulseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "launchbot_relay_pulse_duration_seconds",
				Help: "End-to-end relay pulse duration in seconds, hold included.",
				// The hold alone is ~1s and each call may take up to 30s.
				Buckets: []float64{0.5, 1, 1.5, 2, 3, 5, 10, 30, 60},
			},
		),
	}
	reg.MustRegister(m.wizardSteps, m.pulses, m.pulseDuration)
	return m
}

// WizardStep counts one wizard operation outcome.
func (m *Metrics) WizardStep(step, outcome string) {
	m.wizardSteps.WithLabelValues(step, outcome).Inc()
}

// Pulse counts one relay pulse and observes its duration. failedPhase is
// "" for a completed pulse, otherwise "on" or "off".
func (m *Metrics) Pulse(failedPhase string, d time.Duration) {
	result := "ok"
	if failedPhase != "" {
		result = "failed_" + failedPhase
	}
	m.pulses.WithLabelValues(result).Inc()
	m.pulseDuration.Observe(d.Seconds())
}
