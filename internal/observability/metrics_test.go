package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWizardStep_CountsByStepAndOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.WizardStep("select_city", "ok")
	m.WizardStep("select_city", "ok")
	m.WizardStep("select_machine", "relay_failure")

	if got := testutil.ToFloat64(m.wizardSteps.WithLabelValues("select_city", "ok")); got != 2 {
		t.Errorf("select_city/ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.wizardSteps.WithLabelValues("select_machine", "relay_failure")); got != 1 {
		t.Errorf("select_machine/relay_failure = %v, want 1", got)
	}
}

func TestPulse_ResultLabels(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Pulse("", 1200*time.Millisecond)
	m.Pulse("on", 30*time.Second)
	m.Pulse("off", 2*time.Second)

	for result, want := range map[string]float64{"ok": 1, "failed_on": 1, "failed_off": 1} {
		if got := testutil.ToFloat64(m.pulses.WithLabelValues(result)); got != want {
			t.Errorf("pulses{result=%q} = %v, want %v", result, got, want)
		}
	}
	if got := testutil.CollectAndCount(m.pulseDuration); got != 1 {
		t.Errorf("pulseDuration collector count = %d, want 1", got)
	}
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering the same collectors twice should panic")
		}
	}()
	NewMetrics(reg)
}
