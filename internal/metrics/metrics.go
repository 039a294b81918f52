package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Step metrics
	stepTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	// Whole rotations driven by the local trigger
	rotationTotal *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// StepMetrics records rotation step outcomes. It satisfies rotation.Recorder.
// Recording is a no-op until InitMetrics has been called.
type StepMetrics struct {
	store string
}

// NewStepMetrics creates a recorder that labels every observation with store.
func NewStepMetrics(store string) *StepMetrics {
	return &StepMetrics{store: store}
}

// InitMetrics initializes all Prometheus metrics.
// This should be called once at startup if Prometheus metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		stepTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsops_rotator_step_total",
				Help: "Total number of rotation steps handled, by outcome",
			},
			[]string{"store", "step", "outcome"},
		)

		stepDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsops_rotator_step_duration_seconds",
				Help:    "Duration of rotation steps in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"store", "step"},
		)

		rotationTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsops_rotator_rotation_total",
				Help: "Total number of complete rotations run by the local trigger",
			},
			[]string{"store", "status"},
		)

		metricsRegistered = true
	})
}

// ObserveStep records one handled step.
func (m *StepMetrics) ObserveStep(step, outcome string, duration time.Duration) {
	if !metricsRegistered {
		return
	}

	if stepTotal != nil {
		stepTotal.WithLabelValues(m.store, step, outcome).Inc()
	}

	if stepDuration != nil {
		stepDuration.WithLabelValues(m.store, step).Observe(duration.Seconds())
	}
}

// RecordRotation records the result of a complete rotation.
func (m *StepMetrics) RecordRotation(err error) {
	if !metricsRegistered || rotationTotal == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	rotationTotal.WithLabelValues(m.store, status).Inc()
}

// GetStepTotal returns the step counter for testing.
func GetStepTotal() *prometheus.CounterVec {
	return stepTotal
}

// GetStepDuration returns the step duration histogram for testing.
func GetStepDuration() *prometheus.HistogramVec {
	return stepDuration
}

// GetRotationTotal returns the rotation counter for testing.
func GetRotationTotal() *prometheus.CounterVec {
	return rotationTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
