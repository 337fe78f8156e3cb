// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package execute runs planned strategies against the search backends. It
// injects date windows, relaxes zero-hit queries once, rejects noisy
// queries, reranks the returned documents, and expands high-value hits
// through their family and citation links.
package execute

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/internal/metrics"
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/internal/query"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Engine executes strategy batches on a bounded worker pool. Tasks return
// values; the engine never touches session state.
type Engine struct {
	registry *patentdb.Registry
	cfg      types.AgentConfig
	pool     *ants.Pool
	reranker Reranker

	llm      llm.Client
	attempts int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLLM sets the model used for keyword harvesting. Without one,
// HarvestNewKeywords returns the matrix unchanged.
func WithLLM(c llm.Client, attempts int) Option {
	return func(e *Engine) {
		e.llm = c
		e.attempts = attempts
	}
}

// WithMetrics records every executed strategy.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an engine whose pool size is cfg.Concurrency. Call Release
// when done.
func New(registry *patentdb.Registry, cfg types.AgentConfig, opts ...Option) (*Engine, error) {
	cfg = cfg.WithDefaults()
	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	e := &Engine{
		registry: registry,
		cfg:      cfg,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "execute")
	return e, nil
}

// Release stops the worker pool.
func (e *Engine) Release() {
	e.pool.Release()
}

// BatchResult is the outcome of one ExecuteBatch call.
type BatchResult struct {
	// Strategies are the input strategies with their final status, in input order.
	Strategies []types.Strategy

	// Documents are the returned documents, unique by UID, first strategy
	// wins, ordered by rerank score when an anchor was given.
	Documents []types.FoundDocument

	// TotalHits sums the backend hit counts of all strategies.
	TotalHits int
}

type outcome struct {
	strategy types.Strategy
	docs     []types.FoundDocument
}

// ExecuteBatch runs strategies concurrently. A failed or timed-out strategy
// is marked Error and contributes no documents; it never fails the batch.
func (e *Engine) ExecuteBatch(ctx context.Context, strategies []types.Strategy, criticalDate, anchor string) BatchResult {
	outcomes := make([]outcome, len(strategies))

	var wg sync.WaitGroup
	for i, s := range strategies {
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = e.run(ctx, s, criticalDate)
		})
		if err != nil {
			wg.Done()
			s.Status = types.StatusError
			s.Err = err.Error()
			outcomes[i] = outcome{strategy: s}
		}
	}
	wg.Wait()

	var res BatchResult
	seen := make(map[string]bool)
	for _, o := range outcomes {
		res.Strategies = append(res.Strategies, o.strategy)
		res.TotalHits += o.strategy.Hits
		for _, d := range o.docs {
			if seen[d.UID] {
				continue
			}
			seen[d.UID] = true
			res.Documents = append(res.Documents, d)
		}
	}
	if anchor != "" {
		e.reranker.Rerank(anchor, res.Documents)
	}

	e.logger.InfoContext(ctx, "batch executed",
		"strategies", len(strategies), "documents", len(res.Documents), "total_hits", res.TotalHits)
	return res
}

// run executes one strategy: date injection, one relaxation on zero hits
// (never for conflicting-application checks), then the noise breaker.
func (e *Engine) run(ctx context.Context, s types.Strategy, criticalDate string) outcome {
	start := time.Now()
	o := e.attempt(ctx, s, criticalDate)
	e.metrics.ObserveQuery(o.strategy.Backend, o.strategy.Intent, o.strategy.Status, o.strategy.Hits, time.Since(start))
	return o
}

func (e *Engine) attempt(ctx context.Context, s types.Strategy, criticalDate string) outcome {
	logger := e.logger.With("strategy", s.Name, "intent", s.Intent, "backend", s.Backend)

	fail := func(err error) outcome {
		logger.WarnContext(ctx, "strategy failed", "err", err)
		s.Status = types.StatusError
		s.Err = err.Error()
		return outcome{strategy: s}
	}

	client, err := e.registry.Get(s.Backend)
	if err != nil {
		return fail(err)
	}
	dialect, err := query.For(s.Backend)
	if err != nil {
		return fail(err)
	}

	res, err := e.search(ctx, client, dialect, s, s.Query, criticalDate, e.cfg.SearchLimit)
	if err != nil {
		return fail(err)
	}
	s.Status = types.StatusExecutedSuccess

	if res.Total == 0 && s.Intent != types.IntentConflicting && !s.Semantic {
		if relaxed, ok := dialect.Relax(s.Query); ok {
			logger.InfoContext(ctx, "zero hits, retrying relaxed", "relaxed", relaxed)
			s.RelaxedQuery = relaxed
			res, err = e.search(ctx, client, dialect, s, relaxed, criticalDate, e.cfg.RelaxedLimit)
			if err != nil {
				return fail(err)
			}
			s.Status = types.StatusExecutedRelaxed
		}
	}
	s.Hits = res.Total

	threshold := e.cfg.NoiseThreshold
	if s.Intent == types.IntentBroad {
		threshold = e.cfg.BroadNoiseThreshold
	}
	switch {
	case res.Total > threshold:
		logger.WarnContext(ctx, "query too broad, discarding", "hits", res.Total, "threshold", threshold)
		s.Status = types.StatusSkippedNoise
		return outcome{strategy: s}
	case res.Total == 0:
		s.Status = types.StatusExecutedEmpty
		return outcome{strategy: s}
	}

	docs := make([]types.FoundDocument, 0, len(res.Hits))
	for _, h := range res.Hits {
		docs = append(docs, toDocument(h, s.Backend, s.Name, s.Intent))
	}
	logger.DebugContext(ctx, "strategy executed", "status", s.Status, "hits", res.Total, "returned", len(docs))
	return outcome{strategy: s, docs: docs}
}

// search sends q with the date window for s.Intent. Boolean queries carry
// the window in the query string; semantic searches pass it as ToDate.
func (e *Engine) search(ctx context.Context, client patentdb.Client, dialect query.Dialect, s types.Strategy, q, criticalDate string, limit int) (patentdb.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	if s.Semantic {
		req := patentdb.Request{Query: q, Limit: limit}
		if s.Intent != types.IntentConflicting {
			req.ToDate = criticalDate
		}
		return client.SearchSemantic(ctx, req)
	}

	req := patentdb.Request{Query: dialect.InjectDate(q, s.Intent, criticalDate), Limit: limit}
	if s.Intent != types.IntentConflicting {
		req.ToDate = criticalDate
	}
	return client.Search(ctx, req)
}

func toDocument(h patentdb.Hit, backend, strategy string, intent types.Intent) types.FoundDocument {
	return types.FoundDocument{
		UID:                 h.UID,
		PublicationNumber:   h.PublicationNumber,
		Title:               h.Title,
		Abstract:            h.Abstract,
		ClassificationCodes: h.ClassificationCodes,
		Assignees:           h.Assignees,
		PublicationDate:     h.PublicationDate,
		Backend:             backend,
		RawScore:            h.Score,
		SourceStrategy:      strategy,
		SourceIntent:        intent,
		DateLogic:           types.DateLogicFor(intent),
	}
}
