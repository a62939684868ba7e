// Package metrics wires the cross-cutting Prometheus gauges/histograms
// for the search path: rate-limiter wait time, circuit breaker state,
// and per-provider dispatch outcomes. One struct field per metric,
// breaker state encoded as a small int.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/biolit-mcp/litsearch-mcp/internal/circuit"
)

const namespace = "litsearch"

// Registry bundles every metric this service exports. A nil *Registry is
// safe to call methods on (all observe/inc calls no-op), so components can
// hold an unconditional *Registry field without special-casing metrics
// being disabled.
type Registry struct {
	rateLimiterWait   *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
	breakerFailures   *prometheus.GaugeVec
	dispatchRequests  *prometheus.CounterVec
	dispatchErrors    *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	aggregateDuplicate prometheus.Counter
}

// New registers every metric against reg (pass prometheus.NewRegistry()
// in tests for isolation; pass prometheus.DefaultRegisterer in
// production, matching promhttp.Handler()'s default).
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		rateLimiterWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time a dispatch call spent waiting on a provider's rate limiter.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit",
			Name:      "breaker_state",
			Help:      "Circuit breaker state encoded as 0=closed, 1=half-open, 2=open.",
		}, []string{"provider"}),
		breakerFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit",
			Name:      "breaker_consecutive_failures",
			Help:      "Consecutive failure count currently tracked by a provider's breaker.",
		}, []string{"provider"}),
		dispatchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total provider search calls issued by the dispatcher.",
		}, []string{"provider"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Total provider search calls that returned an error.",
		}, []string{"provider", "category"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Per-provider dispatch call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		aggregateDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "duplicates_removed_total",
			Help:      "Total records folded into an existing article during dedup.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.rateLimiterWait, m.breakerState, m.breakerFailures,
		m.dispatchRequests, m.dispatchErrors, m.dispatchDuration, m.aggregateDuplicate,
	} {
		if err := reg.Register(c); err != nil {
			// Register returns AlreadyRegisteredError on a repeat New() against
			// the same Registerer (e.g. hot-reload); reuse is harmless since
			// the collector is stateless metadata plus independent samples.
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are
				continue
			}
			panic(err)
		}
	}

	return m
}

// ObserveRateLimiterWait records how long a dispatch call waited for
// provider's rate limiter to admit it.
func (m *Registry) ObserveRateLimiterWait(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimiterWait.WithLabelValues(provider).Observe(d.Seconds())
}

// SetBreakerState mirrors a circuit.Status snapshot into the state and
// consecutive-failures gauges.
func (m *Registry) SetBreakerState(status circuit.Status) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(status.Name).Set(float64(breakerStateValue(status.State)))
	m.breakerFailures.WithLabelValues(status.Name).Set(float64(status.ConsecutiveFailures))
}

func breakerStateValue(state string) int {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// RecordDispatch records one provider search call's outcome and latency.
func (m *Registry) RecordDispatch(provider string, d time.Duration, errCategory string) {
	if m == nil {
		return
	}
	m.dispatchRequests.WithLabelValues(provider).Inc()
	m.dispatchDuration.WithLabelValues(provider).Observe(d.Seconds())
	if errCategory != "" {
		m.dispatchErrors.WithLabelValues(provider, errCategory).Inc()
	}
}

// AddDuplicatesRemoved increments the dedup counter by n.
func (m *Registry) AddDuplicatesRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.aggregateDuplicate.Add(float64(n))
}
