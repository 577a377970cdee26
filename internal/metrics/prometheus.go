package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fitstake"

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	AuthRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "auth_rejections_total",
		Help:      "Requests rejected by authentication or authorization",
	}, []string{"reason"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})

	// Challenge lifecycle
	LifecycleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "challenges",
		Name:      "operations_total",
		Help:      "Lifecycle operations by name and outcome",
	}, []string{"operation", "outcome"})

	StakedTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "challenges",
		Name:      "staked_tokens_total",
		Help:      "Tokens debited from users as stakes",
	})

	PaidOutTokens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "challenges",
		Name:      "paid_out_tokens_total",
		Help:      "Tokens credited back to users on completion",
	})

	ProgressBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "progress",
		Name:      "batch_duration_seconds",
		Help:      "Duration of one user's batch progress pass",
		Buckets:   prometheus.DefBuckets,
	})

	ProgressItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "progress",
		Name:      "items_total",
		Help:      "Participations handled by batch progress passes",
	}, []string{"result"})

	// Ledger
	LedgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "calls_total",
		Help:      "Ledger calls by method and result",
	}, []string{"method", "result"})

	// Settlement intents pending for longer than the reconcile age
	StuckIntents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "settlement_intents_stuck",
		Help:      "Settlement intents still pending after the reconcile age",
	})
)

// Outcome labels an operation result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
