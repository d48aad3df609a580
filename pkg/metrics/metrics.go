package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LeadSubmissions records lead submissions by result (accepted|invalid|limited|failed).
	LeadSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_lead_submissions_total",
			Help: "Total number of lead submissions",
		},
		[]string{"result"},
	)

	// ReferralUpdates counts referral updates and their outcome (success|failure).
	ReferralUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_referral_updates_total",
			Help: "Total number of referral updates",
		},
		[]string{"result"},
	)

	// RelayDeliveries counts relay deliveries per target and outcome (success|failure).
	RelayDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_relay_deliveries_total",
			Help: "Total number of lead relay deliveries",
		},
		[]string{"target", "result"},
	)

	// RelayInFlight tracks relay deliveries that have not completed yet.
	RelayInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waitlist_relay_in_flight",
			Help: "Number of lead relay deliveries in progress",
		},
	)

	// StoreLatency measures lead store operations per backend.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitlist_store_latency_seconds",
			Help:    "Lead store operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitlist_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
