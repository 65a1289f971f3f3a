package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "vendorkyc/pkg/platform/audit"
)

// Metrics tracks audit persistence. All methods are nil-safe.
type Metrics struct {
	EntriesEmitted  *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		EntriesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorkyc_audit_entries_total",
			Help: "Audit entries persisted, by action",
		}, []string{"action"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vendorkyc_audit_persist_failures_total",
			Help: "Audit entries that failed to persist (the owning operation failed)",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendorkyc_audit_persist_duration_seconds",
			Help:    "Latency of synchronous audit writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (m *Metrics) IncEntriesEmitted(action audit.Action) {
	if m == nil {
		return
	}
	m.EntriesEmitted.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(seconds)
}
