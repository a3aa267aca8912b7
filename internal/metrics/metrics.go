// Package metrics holds the Prometheus collectors exported by the debug server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeFetchErr  = "fetch_error"
	OutcomeStoreErr  = "store_error"
	OutcomeCancelled = "cancelled"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusDryRun = "dry_run"
)

// Metrics is a set of collectors bound to one registry.
type Metrics struct {
	reg *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastSuccess  prometheus.Gauge
	events       *prometheus.CounterVec
	sends        *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
}

// New registers the collectors (plus Go and process collectors) on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "govreminder_runs_total",
			Help: "Completed reminder runs by outcome.",
		}, []string{"outcome"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "govreminder_run_duration_seconds",
			Help:    "Wall time of a reminder run.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "govreminder_last_success_timestamp_seconds",
			Help: "Unix time of the last run that saved a snapshot.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "govreminder_events_total",
			Help: "Reminder events decided, by event name.",
		}, []string{"event"}),
		sends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "govreminder_webhook_send_total",
			Help: "Webhook send attempts by status.",
		}, []string{"status"}),
		sendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govreminder_webhook_send_duration_seconds",
			Help:    "Duration of webhook HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
	}
}

// Registry is what the /metrics handler gathers from.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveRun records a finished run and the events it decided.
func (m *Metrics) ObserveRun(outcome string, took time.Duration, at time.Time, events []string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(took.Seconds())
	if outcome == OutcomeOK {
		m.lastSuccess.Set(float64(at.Unix()))
	}
	for _, e := range events {
		m.events.WithLabelValues(e).Inc()
	}
}

// ObserveSend records one webhook attempt.
func (m *Metrics) ObserveSend(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(status).Inc()
	if status != StatusDryRun {
		m.sendDuration.WithLabelValues(status).Observe(took.Seconds())
	}
}
