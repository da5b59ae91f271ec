package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes reported for a checkout run.
const (
	CheckoutOutcomeComplete   = "complete"
	CheckoutOutcomeIncomplete = "incomplete"
	CheckoutOutcomeRejected   = "rejected"
)

// Per-store results.
const (
	StoreResultSuccess = "success"
	StoreResultFailed  = "failed"
	StoreResultSkipped = "skipped"
)

// CheckoutMetrics records multi-store checkout runs.
type CheckoutMetrics struct {
	runs     *prometheus.CounterVec
	stores   *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_runs_total",
		Help:      "Checkout runs by outcome.",
	}, []string{"outcome"})
	stores := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_store_results_total",
		Help:      "Per-store checkout results.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Wall time of a checkout run including inter-store delays.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
	reg.MustRegister(runs, stores, duration)
	return &CheckoutMetrics{runs: runs, stores: stores, duration: duration}
}

// ObserveRun records the outcome and wall time of a checkout run.
func (m *CheckoutMetrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *CheckoutMetrics) IncStoreResult(result string) {
	if m == nil || m.stores == nil {
		return
	}
	m.stores.WithLabelValues(normalizeLabel(result)).Inc()
}
