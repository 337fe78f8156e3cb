// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/priorart-engine/internal/execute"
	"github.com/pdiddy/priorart-engine/internal/metrics"
	"github.com/pdiddy/priorart-engine/internal/planner"
	"github.com/pdiddy/priorart-engine/internal/review"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// ErrNoBackend means every strategy of a round failed before the session
// found a single document, so no search backend is reachable.
var ErrNoBackend = errors.New("no search backend reachable")

// highValueScore is the claim-chart match score above which a reviewed
// document feeds keyword harvesting and code calibration.
const highValueScore = 20

// Planner builds the concept matrix and plans each round.
type Planner interface {
	BuildInitialMatrix(ctx context.Context) (types.ConceptMatrix, error)
	PlanForPhase(ctx context.Context, in planner.Input) []types.Strategy
}

// Executor runs strategies and learns from documents.
type Executor interface {
	ExecuteBatch(ctx context.Context, strategies []types.Strategy, criticalDate, anchor string) execute.BatchResult
	ExpandHighValue(ctx context.Context, seeds []*types.FoundDocument, criticalDate, anchor string) []types.FoundDocument
	HarvestNewKeywords(ctx context.Context, docs []*types.FoundDocument, matrix types.ConceptMatrix) types.ConceptMatrix
}

// Reviewer scores candidates and searches for combinations.
type Reviewer interface {
	Review(ctx context.Context, candidates []*types.FoundDocument, reviewed map[string]bool) review.Result
	FindCombination(ctx context.Context, primary *types.FoundDocument, missing []string, candidates []*types.FoundDocument) *types.Combination
}

// Orchestrator runs search sessions.
type Orchestrator struct {
	planner  Planner
	executor Executor
	reviewer Reviewer
	cfg      types.AgentConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records rounds and session outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an orchestrator over the given components.
func New(p Planner, e Executor, r Reviewer, cfg types.AgentConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:  p,
		executor: e,
		reviewer: r,
		cfg:      cfg.WithDefaults(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "agent")
	return o
}

// Run executes a whole session and renders its report. A failure to build
// the concept matrix or to reach any backend is returned as an error.
// Cancellation ends the session early; the report of what was found so far
// is returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context, criticalDate, anchor string) (*types.SearchReport, error) {
	st, err := o.Init(ctx, criticalDate, anchor)
	if err != nil {
		o.metrics.ObserveSession("Failed")
		return nil, err
	}

	for st.Phase != types.PhaseDone {
		if err := ctx.Err(); err != nil {
			o.logger.WarnContext(ctx, "session cancelled", "session", st.SessionID, "iteration", st.Iteration)
			report := BuildReport(st, o.now())
			o.metrics.ObserveSession(report.Outcome)
			return report, err
		}
		if err := o.Step(ctx, st); err != nil {
			o.metrics.ObserveSession("Failed")
			return nil, err
		}
	}

	report := BuildReport(st, o.now())
	o.metrics.ObserveSession(report.Outcome)
	o.logger.InfoContext(ctx, "session finished",
		"session", st.SessionID, "outcome", report.Outcome,
		"rounds", st.Iteration, "documents", st.Documents.Len(), "queries", len(st.Log))
	return report, nil
}

// Init builds the concept matrix and enters Tier1Precision.
func (o *Orchestrator) Init(ctx context.Context, criticalDate, anchor string) (*State, error) {
	st := NewState(uuid.NewString(), criticalDate, anchor, o.cfg.MaxIterations, o.cfg.MaxValidatedCodes)

	matrix, err := o.planner.BuildInitialMatrix(ctx)
	if err != nil {
		return nil, fmt.Errorf("building concept matrix: %w", err)
	}
	if len(matrix) == 0 {
		return nil, fmt.Errorf("building concept matrix: %w", planner.ErrNoUsableFeatures)
	}

	zero := 0
	if err := st.Apply(Delta{Matrix: matrix, Phase: types.PhaseTier1, Iteration: &zero}); err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "session started",
		"session", st.SessionID, "critical_date", criticalDate, "concepts", len(matrix),
		"max_iterations", st.MaxIterations)
	return st, nil
}

// Step runs one round: plan, execute, expand new hits, review, route and
// learn. Rounds never overlap; each plan sees the previous round's deltas.
func (o *Orchestrator) Step(ctx context.Context, st *State) error {
	if st.Phase == types.PhaseDone {
		return nil
	}
	phase := st.Phase
	logger := o.logger.With("session", st.SessionID, "phase", phase, "iteration", st.Iteration)

	strategies := o.planner.PlanForPhase(ctx, planner.Input{
		Phase:           phase,
		Matrix:          st.Matrix,
		ExecutedIntents: st.ExecutedIntents,
		ExecutedQueries: st.ExecutedQueries,
		DiffFeatures:    st.DiffFeatures,
		ValidatedCodes:  st.ValidatedCodes,
	})
	if len(strategies) == 0 {
		logger.WarnContext(ctx, "no strategies planned")
	}

	batch := o.executor.ExecuteBatch(ctx, strategies, st.CriticalDate, st.Anchor)
	if err := o.checkReachable(ctx, st, batch); err != nil {
		return err
	}
	added := newDocuments(st, batch.Documents)
	if err := st.Apply(Delta{Strategies: batch.Strategies, Documents: batch.Documents}); err != nil {
		return err
	}

	if len(added) > 0 {
		seeds := st.Documents.Select(added)
		lineage := o.executor.ExpandHighValue(ctx, seeds, st.CriticalDate, st.Anchor)
		expanded := newDocuments(st, lineage)
		if err := st.Apply(Delta{Documents: lineage}); err != nil {
			return err
		}
		added = append(added, expanded...)
	}
	o.metrics.ObserveRound(phase, st.Documents.Select(added))

	res := o.reviewer.Review(ctx, st.Documents.All(), st.Reviewed)
	delta := Delta{Reviewed: res.Reviewed, Charts: res.Charts, CompletedRound: true}
	if best := o.pickBest(st, res); best != nil {
		delta.Best = best
	}

	// A full match ends the session within this transition.
	if res.FullMatch && delta.Best != nil {
		next := st.Iteration + 1
		delta.Iteration = &next
		if err := st.Apply(delta); err != nil {
			return err
		}
		logger.InfoContext(ctx, "novelty-destroying reference found", "uid", st.BestEvidence)
		return nil
	}

	bestUID, missing := st.BestEvidence, st.DiffFeatures
	if delta.Best != nil {
		bestUID, missing = delta.Best.UID, delta.Best.Missing
	}

	var combo *types.Combination
	if phase == types.PhaseTier2 && bestUID != "" && len(missing) > 0 {
		primary, _ := st.Documents.Get(bestUID)
		combo = o.reviewer.FindCombination(ctx, primary, missing, st.Documents.All())
	}
	delta.Combination = combo

	next := st.Iteration + 1
	delta.Iteration = &next
	delta.Phase = route(phase, routeInput{
		bestFound:   bestUID != "",
		missing:     len(missing) > 0,
		newDocs:     len(added) > 0,
		combination: combo != nil,
		nextIter:    next,
		maxIter:     st.MaxIterations,
	})

	if delta.Phase != types.PhaseDone {
		o.learn(ctx, st, res, &delta)
	}

	if err := st.Apply(delta); err != nil {
		return err
	}
	logger.InfoContext(ctx, "round complete",
		"strategies", len(batch.Strategies), "new_documents", len(added), "reviewed", len(res.Reviewed),
		"best", st.BestEvidence, "missing", len(st.DiffFeatures), "next_phase", st.Phase)
	return nil
}

// pickBest returns the review's best match when it discloses more features
// than the current best evidence.
func (o *Orchestrator) pickBest(st *State, res review.Result) *BestMatch {
	if res.BestUID == "" {
		return nil
	}
	chart := res.Charts[res.BestUID]
	if !res.FullMatch && chart.DisclosedCount() <= st.bestDisclosed() {
		return nil
	}
	return &BestMatch{UID: res.BestUID, Missing: res.Missing}
}

// learn feeds the high-value documents of this round, those scoring above
// highValueScore plus the round's best match, into keyword harvesting and
// classification-code calibration.
func (o *Orchestrator) learn(ctx context.Context, st *State, res review.Result, delta *Delta) {
	seen := make(map[string]bool)
	var docs []*types.FoundDocument
	add := func(uid string) {
		if uid == "" || seen[uid] {
			return
		}
		if doc, ok := st.Documents.Get(uid); ok {
			seen[uid] = true
			docs = append(docs, doc)
		}
	}
	for _, uid := range res.Reviewed {
		if res.Charts[uid].MatchScore > highValueScore {
			add(uid)
		}
	}
	add(res.BestUID)
	if len(docs) == 0 {
		return
	}

	o.logger.InfoContext(ctx, "learning from validated documents", "session", st.SessionID, "documents", len(docs))
	delta.Matrix = o.executor.HarvestNewKeywords(ctx, docs, st.Matrix)
	delta.ValidatedCodes = execute.AnalyzeClassificationCodes(docs, o.cfg.MaxValidatedCodes)
}

// checkReachable fails the session when a round's strategies all errored
// and no backend has ever answered.
func (o *Orchestrator) checkReachable(ctx context.Context, st *State, batch execute.BatchResult) error {
	if len(batch.Strategies) == 0 || st.Reached || st.Documents.Len() > 0 || len(batch.Documents) > 0 || ctx.Err() != nil {
		return nil
	}
	for _, s := range batch.Strategies {
		if s.Status != types.StatusError {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoBackend, batch.Strategies[0].Err)
}

// newDocuments returns the UIDs of docs not yet in the session.
func newDocuments(st *State, docs []types.FoundDocument) []string {
	var out []string
	seen := make(map[string]bool)
	for _, d := range docs {
		if d.UID == "" || seen[d.UID] || st.Documents.Has(d.UID) {
			continue
		}
		seen[d.UID] = true
		out = append(out, d.UID)
	}
	return out
}

type routeInput struct {
	bestFound   bool
	missing     bool
	newDocs     bool
	combination bool
	nextIter    int
	maxIter     int
}

// route picks the next phase after a round without a full match.
func route(phase types.Phase, in routeInput) types.Phase {
	if in.nextIter >= in.maxIter {
		return types.PhaseDone
	}
	switch phase {
	case types.PhaseTier1:
		switch {
		case in.bestFound && in.missing:
			return types.PhaseTier2
		case !in.bestFound && in.newDocs:
			return types.PhaseTier1
		default:
			return types.PhaseTier2
		}
	case types.PhaseTier2:
		if in.combination {
			return types.PhaseDone
		}
		return types.PhaseTier3
	default:
		return types.PhaseDone
	}
}
