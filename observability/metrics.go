package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics records escrow operation activity segmented by action and
// outcome.
type EscrowMetrics struct {
	operations *prometheus.CounterVec
	effects    *prometheus.CounterVec
}

var (
	escrowMetricsOnce sync.Once
	escrowRegistry    *EscrowMetrics
)

// Escrow returns the lazily-initialised escrow metrics registry.
func Escrow() *EscrowMetrics {
	escrowMetricsOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arena",
				Subsystem: "escrow",
				Name:      "operations_total",
				Help:      "Total escrow operations segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			effects: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "arena",
				Subsystem: "escrow",
				Name:      "effects_total",
				Help:      "Total outbound effects queued by escrow operations.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(escrowRegistry.operations, escrowRegistry.effects)
	})
	return escrowRegistry
}

// RecordOperation increments the operation counter for the supplied action
// and outcome.
func (m *EscrowMetrics) RecordOperation(action, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(action, outcome).Inc()
}

// RecordEffects increments the effect counters for a committed operation.
func (m *EscrowMetrics) RecordEffects(transfers int, activation bool) {
	if m == nil {
		return
	}
	if transfers > 0 {
		m.effects.WithLabelValues("transfer").Add(float64(transfers))
	}
	if activation {
		m.effects.WithLabelValues("activation").Inc()
	}
}
