package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the executor collectors.
type Metrics struct {
	registry *prometheus.Registry

	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Runs         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_steps_total",
				Help: "Total number of plan steps visited, by action kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiln_step_duration_seconds",
				Help:    "Duration of plan steps",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"kind"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiln_runs_total",
				Help: "Total number of executor runs, by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.Steps, m.StepDuration, m.Runs)
	return m
}

// Hooks records every finished step.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepFinish: func(_ context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(string(e.Kind), string(e.Outcome)).Inc()
			if e.Outcome == domain.OutcomeRan || e.Outcome == domain.OutcomeFailed {
				m.StepDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
			}
		},
	}
}

// RecordRun counts a finished run as "success" or "failure".
func (m *Metrics) RecordRun(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Runs.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics to path for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
