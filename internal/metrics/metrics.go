package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commfeed"

var (
	// ReactionsTotal 点赞请求结果：created / conflict / removed / unreact_not_found / error
	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reactions_total",
		Help:      "Reaction requests by target kind and outcome.",
	}, []string{"kind", "outcome"})

	LedgerPointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_points_total",
		Help:      "Reputation points appended to the ledger, by target kind.",
	}, []string{"kind"})

	LeaderboardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "leaderboard_duration_seconds",
		Help:      "Time spent computing a leaderboard.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	})

	ThreadOrphansDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thread_orphans_dropped_total",
		Help:      "Comments left out of an assembled thread because their parent chain is broken.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
