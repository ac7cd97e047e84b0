// Package metrics exposes Prometheus collectors for the tagging pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_runs_total",
		Help: "Completed tagging runs by trigger and outcome",
	}, []string{"trigger", "outcome"}) // trigger=api|scheduler, outcome=completed|failed|cancelled|timed_out

	videosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_videos_processed_total",
		Help: "Per-video outcomes across all runs",
	}, []string{"status"}) // status=success|skipped|failed

	remoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_remote_calls_total",
		Help: "Guarded remote calls by service and outcome",
	}, []string{"service", "outcome"}) // outcome=success|failure|rejected

	remoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tagmark_remote_call_duration_seconds",
		Help:    "Latency of guarded remote calls, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tagmark_circuit_breaker_state",
		Help: "Circuit breaker state by service (active state=1, others=0)",
	}, []string{"service", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to the open state",
	}, []string{"service"})

	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_cache_requests_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"}) // result=hit|miss

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_events_dropped_total",
		Help: "Informational progress events dropped on full buffers",
	}, []string{"type"})

	unsortedBookmarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagmark_unsorted_bookmarks_total",
		Help: "Unsorted-sweeper bookmark outcomes",
	}, []string{"outcome"}) // outcome=succeeded|failed
)

var breakerStates = []string{"closed", "open", "half-open"}

// RecordRun counts one finished run.
func RecordRun(trigger, outcome string) {
	runsTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordVideoOutcome counts one per-video terminal status.
func RecordVideoOutcome(status string) {
	videosProcessed.WithLabelValues(status).Inc()
}

// RecordRemoteCall counts one guarded call.
func RecordRemoteCall(service, outcome string) {
	remoteCalls.WithLabelValues(service, outcome).Inc()
}

// ObserveRemoteCallDuration records the end-to-end latency of one guarded
// call in seconds.
func ObserveRemoteCallDuration(service string, seconds float64) {
	remoteCallDuration.WithLabelValues(service).Observe(seconds)
}

// SetBreakerState records the active breaker state for a service.
func SetBreakerState(service, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		breakerState.WithLabelValues(service, s).Set(value)
	}
}

// RecordBreakerTrip counts one transition to the open state.
func RecordBreakerTrip(service string) {
	breakerTrips.WithLabelValues(service).Inc()
}

// RecordCacheRequest counts one cache lookup.
func RecordCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequests.WithLabelValues(cache, result).Inc()
}

// RecordDroppedEvent counts one informational event dropped on a full buffer.
func RecordDroppedEvent(eventType string) {
	eventsDropped.WithLabelValues(eventType).Inc()
}

// RecordUnsortedBookmark counts one sweeper bookmark outcome.
func RecordUnsortedBookmark(outcome string) {
	unsortedBookmarks.WithLabelValues(outcome).Inc()
}
