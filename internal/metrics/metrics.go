// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus counters and histograms for search
// sessions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

const namespace = "priorart"

// Metrics holds the collectors of one process, registered on a private
// registry rather than the global default.
type Metrics struct {
	registry *prometheus.Registry

	queries      *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	queryHits    *prometheus.HistogramVec
	llmCalls     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	rounds       *prometheus.CounterVec
	documents    *prometheus.CounterVec
	sessions     *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Executed search strategies by backend, intent and final status.",
		}, []string{"backend", "intent", "status"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Wall time of one strategy including any relaxed retry.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend"}),
		queryHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_hits",
			Help:      "Total hit count reported by the backend for a strategy.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 2000, 10000},
		}, []string{"backend"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Language model calls by schema and result.",
		}, []string{"schema", "result"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Latency of language model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"schema"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed search rounds by phase.",
		}, []string{"phase"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_found_total",
			Help:      "Newly merged documents by source intent.",
		}, []string{"intent"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished search sessions by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.queries, m.queryLatency, m.queryHits,
		m.llmCalls, m.llmLatency,
		m.rounds, m.documents, m.sessions,
	)
	return m
}

// Registry returns the private registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records one executed strategy.
func (m *Metrics) ObserveQuery(backend string, intent types.Intent, status types.StrategyStatus, hits int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(backend, string(intent), string(status)).Inc()
	m.queryLatency.WithLabelValues(backend).Observe(elapsed.Seconds())
	m.queryHits.WithLabelValues(backend).Observe(float64(hits))
}

// ObserveLLM records one language model call. It matches llm.Observer.
func (m *Metrics) ObserveLLM(schema string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.llmCalls.WithLabelValues(schema, result).Inc()
	m.llmLatency.WithLabelValues(schema).Observe(elapsed.Seconds())
}

// ObserveRound records a finished round and the documents it added.
func (m *Metrics) ObserveRound(phase types.Phase, added []*types.FoundDocument) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(string(phase)).Inc()
	for _, d := range added {
		m.documents.WithLabelValues(string(d.SourceIntent)).Inc()
	}
}

// ObserveSession records a finished session.
func (m *Metrics) ObserveSession(outcome types.Outcome) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(string(outcome)).Inc()
}
