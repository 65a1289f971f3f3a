package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Comparator latencies by method and outcome
	ComparatorDuration *prometheus.HistogramVec

	// Terminal decisions by status
	DecisionsTotal *prometheus.CounterVec

	// Processing attempts left in processing, by reason
	DeferredTotal *prometheus.CounterVec

	// Full processing latency including the concurrent checks
	ProcessingDuration prometheus.Histogram

	// Extraction suggestions by outcome
	ExtractionsTotal *prometheus.CounterVec

	DuplicatesTotal prometheus.Counter
	RemindersSent   prometheus.Counter
}

// New registers the verification metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		ComparatorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vendorkyc_comparator_duration_seconds",
			Help:    "Duration of biometric comparator calls by method and outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"method", "outcome"}), // outcome: "ok", "error", "timeout"

		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorkyc_decisions_total",
			Help: "Total verification decisions by terminal status",
		}, []string{"status"}),

		DeferredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorkyc_processing_deferred_total",
			Help: "Processing attempts that left the record in processing",
		}, []string{"reason"}),

		ProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vendorkyc_processing_duration_seconds",
			Help:    "Duration of verification processing",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),

		ExtractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorkyc_extractions_total",
			Help: "Extraction suggestions by outcome",
		}, []string{"outcome"}),

		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vendorkyc_duplicate_identity_total",
			Help: "Submissions rejected because the id number is approved for another vendor",
		}),

		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vendorkyc_trial_reminders_sent_total",
			Help: "Trial ending reminders dispatched",
		}),
	}
}

func (m *Metrics) ObserveComparator(method, outcome string, d time.Duration) {
	if m != nil {
		m.ComparatorDuration.WithLabelValues(method, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncDecision(status string) {
	if m != nil {
		m.DecisionsTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncDeferred(reason string) {
	if m != nil {
		m.DeferredTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveProcessing(d time.Duration) {
	if m != nil {
		m.ProcessingDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncExtraction(outcome string) {
	if m != nil {
		m.ExtractionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.DuplicatesTotal.Inc()
	}
}

func (m *Metrics) IncReminderSent() {
	if m != nil {
		m.RemindersSent.Inc()
	}
}
