package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring reconciliation health
var (
	OrdersReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_orders_total",
			Help: "Total number of orders finalized, by terminal status",
		},
		[]string{"status"},
	)

	ItemOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_item_outcomes_total",
			Help: "Total number of line items processed, by outcome",
		},
		[]string{"outcome"},
	)

	TransientFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_transient_failures_total",
			Help: "Total number of invocations aborted by a transient store failure",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconciler_reconcile_duration_seconds",
			Help:    "Duration of one order reconciliation",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_events_skipped_total",
			Help: "Total number of malformed trigger events skipped",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(OrdersReconciledTotal)
	prometheus.MustRegister(ItemOutcomesTotal)
	prometheus.MustRegister(TransientFailuresTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(EventsSkippedTotal)
}
