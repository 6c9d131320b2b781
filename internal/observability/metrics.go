package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent result paths.
const (
	PathLive     = "live"
	PathCached   = "cached"
	PathFallback = "fallback"
	PathFailed   = "failed"
)

// Metrics holds the service's Prometheus counters. A nil *Metrics is valid
// and records nothing, so callers never need to check whether metrics are on.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups       *prometheus.CounterVec
	generationAttempts *prometheus.CounterVec
	agentResults       *prometheus.CounterVec
	traceDrops         prometheus.Counter
	partialWrites      prometheus.Counter
}

// NewMetrics registers the counters, plus Go runtime and process collectors,
// on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthflow_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, expired, error)",
		}, []string{"result"}),
		generationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthflow_generation_attempts_total",
			Help: "Gemini API attempts by outcome",
		}, []string{"outcome"}),
		agentResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthflow_agent_results_total",
			Help: "Agent results by agent and path (live, cached, fallback, failed)",
		}, []string{"agent", "path"}),
		traceDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthflow_trace_drops_total",
			Help: "Traces dropped because the recorder buffer was full or closed",
		}),
		partialWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthflow_trace_partial_write_failures_total",
			Help: "Trace batches only partially inserted into MongoDB",
		}),
	}
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) GenerationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AgentResult(agent, path string) {
	if m == nil {
		return
	}
	m.agentResults.WithLabelValues(agent, path).Inc()
}

func (m *Metrics) TraceDropped() {
	if m == nil {
		return
	}
	m.traceDrops.Inc()
}

func (m *Metrics) TracePartialWrite() {
	if m == nil {
		return
	}
	m.partialWrites.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry to tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
