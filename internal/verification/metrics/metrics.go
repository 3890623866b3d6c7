package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Verifications started by document type
	Started *prometheus.CounterVec

	// Verifications that reached completed
	Completed *prometheus.CounterVec

	// Verifications that failed, by the stage that rejected them
	Failed *prometheus.CounterVec

	// Per-step latencies
	StepLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Started: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_verifications_started_total",
			Help: "Total verifications started by document type",
		}, []string{"document_type"}),

		Completed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_verifications_completed_total",
			Help: "Total verifications that completed successfully",
		}, []string{"document_type"}),

		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_verifications_failed_total",
			Help: "Total verifications that failed, by rejecting stage",
		}, []string{"document_type", "stage"}), // stage: "document", "face"

		StepLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verity_verification_step_duration_seconds",
			Help:    "Duration of verification steps including analyzer calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"step"}), // step: "document", "face"
	}
}

// IncrementStarted records a newly started verification.
func (m *Metrics) IncrementStarted(documentType string) {
	if m != nil {
		m.Started.WithLabelValues(documentType).Inc()
	}
}

// IncrementCompleted records a successful verification.
func (m *Metrics) IncrementCompleted(documentType string) {
	if m != nil {
		m.Completed.WithLabelValues(documentType).Inc()
	}
}

// IncrementFailed records a failed verification and the stage that rejected it.
func (m *Metrics) IncrementFailed(documentType, stage string) {
	if m != nil {
		m.Failed.WithLabelValues(documentType, stage).Inc()
	}
}

// ObserveStepLatency records the duration of one verification step.
func (m *Metrics) ObserveStepLatency(step string, d time.Duration) {
	if m != nil {
		m.StepLatency.WithLabelValues(step).Observe(d.Seconds())
	}
}
