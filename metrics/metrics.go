// Package metrics exports the progress of boot phases as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkock/bootphase"
)

const (
	namespace = "bootphase"

	phaseKey   = "phase"
	stepKey    = "step"
	outcomeKey = "outcome"

	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Observer is a bootphase.Observer that records step durations and outcomes, and phase outcomes.
type Observer struct {
	stepsStarted  *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	phaseDuration *prometheus.HistogramVec
}

// NewObserver creates the metrics of an Observer and registers them with reg.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		stepsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_started_total",
			Help:      "Number of steps entered, by phase and step.",
		}, []string{phaseKey, stepKey}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Distribution of how long it took for steps to call their continuation.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{phaseKey, stepKey, outcomeKey}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Distribution of how long it took for phase invocations to complete.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{phaseKey, outcomeKey}),
	}

	for _, c := range []prometheus.Collector{o.stepsStarted, o.stepDuration, o.phaseDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// StepStarted counts the step as started.
func (o *Observer) StepStarted(phase string, _ int, step string) {
	o.stepsStarted.WithLabelValues(phase, step).Inc()
}

// StepFinished records how long the step took, labelled with its outcome.
func (o *Observer) StepFinished(phase string, _ int, step string, elapsed time.Duration, err error) {
	o.stepDuration.WithLabelValues(phase, step, outcome(err)).Observe(elapsed.Seconds())
}

// PhaseFinished records how long the invocation took, labelled with its outcome.
func (o *Observer) PhaseFinished(phase string, elapsed time.Duration, err error) {
	o.phaseDuration.WithLabelValues(phase, outcome(err)).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeSuccess
}

// Verify that Observer satisfies the bootphase.Observer interface.
var _ bootphase.Observer = (*Observer)(nil)
