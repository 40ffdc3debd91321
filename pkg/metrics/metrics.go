package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Application metrics. Defined here and registered onto the metrics
// server's registry at startup.
var (
	LeadScoresComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingside_lead_scores_computed_total",
			Help: "Total number of lead scores computed, by quality label",
		},
		[]string{"quality"},
	)

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingside_loyalty_points_awarded_total",
			Help: "Total loyalty points awarded, by event type",
		},
		[]string{"event_type"},
	)

	TierChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingside_tier_changes_total",
			Help: "Total tier transitions, by from/to tier and reason",
		},
		[]string{"from", "to", "reason"},
	)

	DecayRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wingside_decay_runs_total",
			Help: "Total decay batch runs, by mode (live/dry_run)",
		},
		[]string{"mode"},
	)

	DecayCustomerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wingside_decay_customer_failures_total",
			Help: "Customers whose decay persistence failed after retries",
		},
	)

	DecayRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wingside_decay_run_duration_seconds",
			Help:    "Wall time of a decay batch run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Register registers all application metrics onto a registry.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		LeadScoresComputed,
		PointsAwarded,
		TierChanges,
		DecayRunsTotal,
		DecayCustomerFailures,
		DecayRunDuration,
	)
}
