// Package metrics provides Prometheus metrics for wikibot.
// It tracks wiki API traffic, edit outcomes, login health, cache
// performance, IRC activity, and task runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "wikibot"
)

var (
	// APIRequestsTotal counts wiki API requests by action and status
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total wiki API requests by action and status",
	}, []string{"action", "status"})

	// APIRequestDuration measures wiki API call latency by action
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Wiki API call latency distribution by action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// APIRetries counts transport-level API request retries
	APIRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_retries_total",
		Help:      "Wiki API request retry count",
	})

	// EditsTotal counts edit submissions by outcome
	// (success, conflict, permissions, login, filtered, spam, error, ...)
	EditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edits_total",
		Help:      "Edit submissions by outcome",
	}, []string{"outcome"})

	// LoginsTotal counts login attempts by result
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "logins_total",
		Help:      "Login attempts by result",
	}, []string{"result"})

	// CacheHits counts cache hits
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hit count",
	})

	// CacheMisses counts cache misses
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_misses_total",
		Help:      "Total cache miss count",
	})

	// CacheSize tracks current cache entry count
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "cache_entries",
		Help:      "Current number of cache entries",
	})

	// CacheEvictions counts cache evictions
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_evictions_total",
		Help:      "Total cache eviction count",
	})

	// DedupedRequests counts requests coalesced into an identical in-flight one
	DedupedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "deduped_requests_total",
		Help:      "Requests coalesced with an identical in-flight request",
	})

	// IRCLinesIn counts IRC lines received by component (frontend, watcher)
	IRCLinesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "irc_lines_in_total",
		Help:      "IRC lines received by component",
	}, []string{"component"})

	// IRCLinesOut counts IRC lines sent by component
	IRCLinesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "irc_lines_out_total",
		Help:      "IRC lines sent by component",
	}, []string{"component"})

	// CommandsTotal counts IRC command dispatches by command and status
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "commands_total",
		Help:      "IRC command dispatches by command and status",
	}, []string{"command", "status"})

	// TaskRunsTotal counts task runs by task and status
	TaskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "task_runs_total",
		Help:      "Task runs by task and status",
	}, []string{"task", "status"})

	// TaskDuration measures task run duration by task
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "task_duration_seconds",
		Help:      "Task run duration by task",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
	}, []string{"task"})

	// RCEventsTotal counts recent-changes events seen by the watcher
	RCEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rc_events_total",
		Help:      "Recent-changes events parsed by the watcher",
	})
)
