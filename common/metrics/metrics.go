// Package metrics exposes the Prometheus counters/gauges the proxy pipeline
// and its components update, scraped at /metrics (spec SPEC_FULL §2 ambient
// stack), grounded on this codebase family's monitor/prometheus wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts completed proxied requests by final status class.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total proxied requests, labeled by outcome.",
	}, []string{"outcome"})

	// RetriesTotal counts retryable-failure retries across candidate upstreams.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total retry attempts across candidate upstreams.",
	})

	// CircuitOpenTotal counts Closed/HalfOpen -> Open breaker trips.
	CircuitOpenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_circuit_open_total",
		Help: "Total circuit breaker trips to Open, labeled by upstream id.",
	}, []string{"upstream_id"})

	// LogDroppedTotal mirrors logsink.Sink.Dropped(), spec §4.10/§8's
	// "counter incremented" invariant, as a scrapeable gauge-like counter.
	LogDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_log_dropped_total",
		Help: "Total LogRecords dropped because the log channel was full.",
	})

	// RateLimitedTotal counts local admission denials (spec §4.4).
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limited_total",
		Help: "Total requests rejected by the local rate limiter.",
	})
)
