package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	LeadsRequested  prometheus.Counter
	OffersBroadcast prometheus.Counter
	AcceptWins      prometheus.Counter
	AcceptConflicts prometheus.Counter
	Transitions     *prometheus.CounterVec
	PushFailures    *prometheus.CounterVec
	MatchingTime    prometheus.Histogram
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		LeadsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_requested_total",
			Help:      "The total number of lead requests created",
		}),
		OffersBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_offers_broadcast_total",
			Help:      "The total number of lead offers pushed to candidate vendors",
		}),
		AcceptWins: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_accepts_won_total",
			Help:      "The total number of leads bound to a vendor",
		}),
		AcceptConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_accept_conflicts_total",
			Help:      "The total number of accept attempts that lost the race",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "The total number of booking status transitions",
		}, []string{"to"}),
		PushFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "The total number of failed push deliveries",
		}, []string{"channel"}),
		MatchingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lead_matching_time_seconds",
			Help:      "Time taken to find and notify candidate vendors",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
