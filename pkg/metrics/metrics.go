// Package metrics provides Prometheus metrics for the matcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchRunsTotal tracks match runs by config and outcome (matched, unmatched, error)
	MatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total number of match runs by outcome",
		},
		[]string{"config", "outcome"},
	)

	// MatchRunDuration tracks how long a record takes to match
	MatchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Duration of match runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"config"},
	)

	// QueriesTotal tracks compiled queries by type and result (sent, skipped, error)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "query",
			Name:      "compiled_total",
			Help:      "Total number of compiled queries by type and result",
		},
		[]string{"type", "result"},
	)

	// SearchDuration tracks search backend latency
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "search",
			Name:      "request_duration_seconds",
			Help:      "Duration of search requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"index"},
	)

	// HitsValidatedTotal tracks validator decisions
	HitsValidatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "validator",
			Name:      "hits_total",
			Help:      "Total number of validated hits by decision",
		},
		[]string{"config", "decision"},
	)

	// CacheLookupsTotal tracks match cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of match cache lookups by result",
		},
		[]string{"result"},
	)

	// EventsConsumedTotal tracks records consumed by the worker
	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "worker",
			Name:      "events_consumed_total",
			Help:      "Total number of consumed match requests by status",
		},
		[]string{"status"},
	)
)
