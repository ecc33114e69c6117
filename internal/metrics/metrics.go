// Package metrics exposes Prometheus instrumentation for the chat endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portfolio_chat"

var (
	rateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_decisions_total",
		Help:      "Chat quota decisions by reason.",
	}, []string{"reason", "allowed"})

	rateLimitPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_records_pruned_total",
		Help:      "Stale counter records removed by the garbage collector.",
	})

	chatOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_requests_total",
		Help:      "Chat requests by terminal outcome.",
	}, []string{"outcome"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of upstream model calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"provider", "status"})
)

// ObserveRateLimitDecision records one quota decision.
func ObserveRateLimitDecision(reason string, allowed bool) {
	rateLimitDecisions.WithLabelValues(reason, strconv.FormatBool(allowed)).Inc()
}

// AddPruned records counter records removed by garbage collection.
func AddPruned(n int64) {
	if n > 0 {
		rateLimitPruned.Add(float64(n))
	}
}

// ObserveChatOutcome records the terminal outcome of one chat request ("ok" or an error code).
func ObserveChatOutcome(outcome string) {
	chatOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of one upstream model call.
func ObserveUpstream(provider string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	upstreamDuration.WithLabelValues(provider, status).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
