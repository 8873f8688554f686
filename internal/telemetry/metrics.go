package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors instrumenting the supervisor's
// lifecycle and the completion engine's retry behavior.
type Metrics struct {
	SupervisorState    *prometheus.GaugeVec
	CompletionAttempts *prometheus.CounterVec
	CompletionRetries  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// GetMetrics returns the process-wide Metrics instance, registering its
// collectors with the default registry on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			SupervisorState: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "llmcascade_supervisor_state",
				Help: "Current lifecycle state of the supervised local server, labeled by state name (1 = current state).",
			}, []string{"state"}),
			CompletionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "llmcascade_completion_attempts_total",
				Help: "Total completion attempts made against a backend, labeled by backend name and outcome.",
			}, []string{"backend", "outcome"}),
			CompletionRetries: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "llmcascade_completion_retries_total",
				Help: "Total completion retries triggered by a backend error or stop-limit budget expansion, labeled by backend name.",
			}, []string{"backend"}),
		}
	})
	return metrics
}

// SetSupervisorState records state as the supervisor's current lifecycle
// state, zeroing every other known state label.
func (m *Metrics) SetSupervisorState(state string, known []string) {
	for _, s := range known {
		m.SupervisorState.WithLabelValues(s).Set(0)
	}
	m.SupervisorState.WithLabelValues(state).Set(1)
}
