// Package telemetry implements spec.md §4.14's observability shim: a
// fixed set of Prometheus counters, histograms, and gauges, named
// exactly as the contract requires so any Prometheus deployment scrapes
// the same metric names regardless of who wires this package in. The
// registration/helper-method shape follows the teacher's sibling
// example jinterlante1206-AleutianLocal's observability/metrics.go
// (promauto construction plus typed Record* helpers); the metric names
// and label sets themselves come from spec.md, not from that repo.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every gauge/counter/histogram spec.md §4.14 names.
// Built once at startup via New() and shared read-only thereafter,
// matching §5's "immutable after startup" rule for process-wide state.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	AuthFailuresTotal   prometheus.Counter
	RateLimitedTotal    prometheus.Counter
	KGOperationsTotal   *prometheus.CounterVec
	AgentTasksTotal     *prometheus.CounterVec
	LLMCallsTotal       *prometheus.CounterVec

	HTTPRequestDuration *prometheus.HistogramVec
	KGOperationDuration *prometheus.HistogramVec
	LLMTimeToFirstToken prometheus.Histogram

	KGTriplesTotal    prometheus.Gauge
	BrowserTabsInUse  prometheus.Gauge
	UptimeSeconds     prometheus.Gauge

	gatherer  prometheus.Gatherer
	startedAt time.Time
}

// New registers every metric against reg and returns the bundle. reg
// may be prometheus.NewRegistry() (tests, to avoid collisions across
// repeated New() calls) or prometheus.DefaultRegisterer (production).
// reg's concrete type is always also a prometheus.Gatherer in both
// cases, which Gatherer() exposes for GET /metrics to scrape the same
// registry New() populated instead of the package-global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	return &Metrics{
		gatherer: gatherer,
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"endpoint", "method", "status"}),

		AuthFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total authentication failures.",
		}),

		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total requests rejected for exceeding the rate limit.",
		}),

		KGOperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kg_operations_total",
			Help: "Total knowledge-graph operations by kind.",
		}, []string{"op"}),

		AgentTasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_tasks_total",
			Help: "Total agent tasks by outcome.",
		}, []string{"outcome"}),

		LLMCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Total LLM provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),

		KGOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kg_operation_duration_seconds",
			Help:    "Knowledge-graph operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		LLMTimeToFirstToken: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_time_to_first_token_seconds",
			Help:    "Time from LLM call to first streamed token in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		KGTriplesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kg_triples_total",
			Help: "Current number of triples held in the knowledge graph.",
		}),

		BrowserTabsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "browser_tabs_in_use",
			Help: "Current number of checked-out browser tabs.",
		}),

		UptimeSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uptime_seconds",
			Help: "Seconds since process startup.",
		}),

		startedAt: time.Now(),
	}
}

// RecordHTTPRequest records one completed HTTP request's outcome and
// latency.
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// RecordAuthFailure increments the auth-failure counter.
func (m *Metrics) RecordAuthFailure() { m.AuthFailuresTotal.Inc() }

// RecordRateLimited increments the rate-limited counter.
func (m *Metrics) RecordRateLimited() { m.RateLimitedTotal.Inc() }

// RecordKGOperation records one triple-store operation's kind and
// latency.
func (m *Metrics) RecordKGOperation(op string, duration time.Duration) {
	m.KGOperationsTotal.WithLabelValues(op).Inc()
	m.KGOperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordAgentTask records one finished agent task's outcome
// ("success", "failure", "max_iterations", "timeout").
func (m *Metrics) RecordAgentTask(outcome string) {
	m.AgentTasksTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMCall records one LLM provider call's outcome.
func (m *Metrics) RecordLLMCall(provider, outcome string) {
	m.LLMCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordTimeToFirstToken records a stream's latency to its first token.
func (m *Metrics) RecordTimeToFirstToken(d time.Duration) {
	m.LLMTimeToFirstToken.Observe(d.Seconds())
}

// SetKGTriplesTotal publishes the triple store's current size.
func (m *Metrics) SetKGTriplesTotal(n int) { m.KGTriplesTotal.Set(float64(n)) }

// SetBrowserTabsInUse publishes the pool's current checked-out count.
func (m *Metrics) SetBrowserTabsInUse(n int) { m.BrowserTabsInUse.Set(float64(n)) }

// RefreshUptime recomputes the uptime gauge from the process start
// time recorded by New(). Called just before each /metrics scrape.
func (m *Metrics) RefreshUptime() {
	m.UptimeSeconds.Set(time.Since(m.startedAt).Seconds())
}

// Uptime returns the duration since New() was called, for GET /health's
// uptime_seconds field.
func (m *Metrics) Uptime() time.Duration { return time.Since(m.startedAt) }

// Gatherer exposes the registry New() populated, so GET /metrics scrapes
// the same metrics this bundle records rather than the package-global
// default registry.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }
