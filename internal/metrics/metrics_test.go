package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/circuit"
)

func TestRecordDispatchIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDispatch("pubmed", 120*time.Millisecond, "")
	m.RecordDispatch("pubmed", 50*time.Millisecond, "transient")

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var requestsTotal float64
	var errorsTotal float64
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "litsearch_dispatch_requests_total":
			for _, metric := range mf.GetMetric() {
				requestsTotal += metric.GetCounter().GetValue()
			}
		case "litsearch_dispatch_errors_total":
			for _, metric := range mf.GetMetric() {
				errorsTotal += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), requestsTotal)
	assert.Equal(t, float64(1), errorsTotal)
}

func TestSetBreakerStateEncodesOpenAsTwo(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetBreakerState(circuit.Status{Name: "crossref", State: "open", ConsecutiveFailures: 5})

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "litsearch_circuit_breaker_state" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			found = true
			assert.Equal(t, float64(2), metric.GetGauge().GetValue())
		}
	}
	assert.True(t, found, "expected breaker_state metric to be present")
}

func TestNilRegistryMethodsAreNoOps(t *testing.T) {
	var m *Registry
	assert.NotPanics(t, func() {
		m.ObserveRateLimiterWait("pubmed", time.Second)
		m.SetBreakerState(circuit.Status{Name: "pubmed", State: "closed"})
		m.RecordDispatch("pubmed", time.Second, "")
		m.AddDuplicatesRemoved(3)
	})
}
