package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)
	var total float64
	for m := range ch {
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		if pb.Counter != nil {
			total += pb.Counter.GetValue()
		}
	}
	return total
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, g.Write(&pb))
	return pb.Gauge.GetValue()
}

func TestRecordHTTPRequestIncrementsCounterAndObservesDuration(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordHTTPRequest("/parse", "POST", "200", 50*time.Millisecond)
	assert.Equal(t, float64(1), counterValue(t, m.HTTPRequestsTotal))
}

func TestRecordAuthFailureAndRateLimitedIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordAuthFailure()
	m.RecordAuthFailure()
	m.RecordRateLimited()
	assert.Equal(t, float64(2), counterValue(t, m.AuthFailuresTotal))
	assert.Equal(t, float64(1), counterValue(t, m.RateLimitedTotal))
}

func TestSetKGTriplesTotalPublishesGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetKGTriplesTotal(42)
	assert.Equal(t, float64(42), gaugeValue(t, m.KGTriplesTotal))
}

func TestRefreshUptimeAdvancesMonotonically(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RefreshUptime()
	first := gaugeValue(t, m.UptimeSeconds)
	time.Sleep(5 * time.Millisecond)
	m.RefreshUptime()
	second := gaugeValue(t, m.UptimeSeconds)
	assert.GreaterOrEqual(t, second, first)
}

func TestNewRegistersDistinctMetricsOnSeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestGathererScrapesTheSameRegistryMetricsWereRegisteredOn(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetKGTriplesTotal(7)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "kg_triples_total" {
			found = true
		}
	}
	assert.True(t, found)
}
