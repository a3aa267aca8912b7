package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value gathers name from the registry and returns the counter/gauge value
// (or histogram sample count) of the series matching label=want.
func value(t *testing.T, m *Metrics, name, label, want string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			match := label == ""
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == want {
					match = true
				}
			}
			if !match {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestObserveRun(t *testing.T) {
	t.Parallel()
	m := New()
	at := time.Unix(1633078800, 0)

	m.ObserveRun(OutcomeOK, time.Second, at, []string{"reminder_algo_vote", "reminder_algo_signup", "reminder_algo_signup"})
	m.ObserveRun(OutcomeFetchErr, time.Second, at.Add(time.Hour), nil)

	assert.Equal(t, 1.0, value(t, m, "govreminder_runs_total", "outcome", OutcomeOK))
	assert.Equal(t, 1.0, value(t, m, "govreminder_runs_total", "outcome", OutcomeFetchErr))
	assert.Equal(t, 2.0, value(t, m, "govreminder_events_total", "event", "reminder_algo_signup"))
	assert.Equal(t, 2.0, value(t, m, "govreminder_run_duration_seconds", "", ""))
	// failed runs do not move the success gauge
	assert.Equal(t, float64(at.Unix()), value(t, m, "govreminder_last_success_timestamp_seconds", "", ""))
}

func TestObserveSend(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveSend(StatusSent, 100*time.Millisecond)
	m.ObserveSend(StatusFailed, time.Second)
	m.ObserveSend(StatusDryRun, 0)

	assert.Equal(t, 1.0, value(t, m, "govreminder_webhook_send_total", "status", StatusSent))
	assert.Equal(t, 1.0, value(t, m, "govreminder_webhook_send_total", "status", StatusDryRun))
	assert.Equal(t, 1.0, value(t, m, "govreminder_webhook_send_duration_seconds", "status", StatusFailed))
	assert.Equal(t, 0.0, value(t, m, "govreminder_webhook_send_duration_seconds", "status", StatusDryRun))
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveRun(OutcomeOK, 0, time.Now(), nil)
	m.ObserveSend(StatusSent, 0)
}
