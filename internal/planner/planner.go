// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner builds the concept matrix and turns each search phase into
// a batch of concrete, deduplicated strategies.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/internal/query"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Intents each phase draws from the universal plan.
var (
	tier1Intents = []types.Intent{types.IntentPrecision, types.IntentSynergy, types.IntentConflicting}
	tier2Intents = []types.Intent{types.IntentCompetitor, types.IntentFunctional, types.IntentComponent, types.IntentBroad}
)

// markdownRef matches "**term** [3]" citation markup in report narratives.
var markdownRef = regexp.MustCompile(`\*\*(.+?)\*\*\s*\[\d+\]`)

// Options configures a Planner.
type Options struct {
	// Primary is the backend for boolean and semantic strategies.
	Primary string

	// Scholar routes Fundamental strategies to Semantic Scholar.
	Scholar bool

	// Attempts bounds LLM retries per call (default 3).
	Attempts int
}

// Input is the session state a plan depends on.
type Input struct {
	Phase           types.Phase
	Matrix          types.ConceptMatrix
	ExecutedIntents []types.Intent

	// ExecutedQueries holds the Strategy.Key of every executed strategy.
	ExecutedQueries map[string]bool
	DiffFeatures    []string
	ValidatedCodes  []string
}

// Planner plans searches for one target patent.
type Planner struct {
	client   llm.Client
	report   types.TechnicalReport
	primary  string
	scholar  bool
	attempts int
	logger   *slog.Logger
}

// New returns a planner for report.
func New(client llm.Client, report types.TechnicalReport, opts Options) *Planner {
	if opts.Primary == "" {
		opts.Primary = patentdb.PatSnapName
	}
	return &Planner{
		client:   client,
		report:   report,
		primary:  opts.Primary,
		scholar:  opts.Scholar,
		attempts: opts.Attempts,
		logger:   slog.Default().With("component", "planner"),
	}
}

// PlanForPhase returns the strategies to execute for in.Phase, all Pending,
// with no query that was executed before or repeats within the batch. A
// failed model call yields fewer strategies, never an error.
func (p *Planner) PlanForPhase(ctx context.Context, in Input) []types.Strategy {
	vocab := query.Vocabulary{
		Matrix:     in.Matrix,
		Codes:      p.activeCodes(in.ValidatedCodes),
		Applicants: p.report.Applicants,
		Inventors:  p.report.Inventors,
	}

	var items []types.PlanItem
	switch in.Phase {
	case types.PhaseTier1:
		items = filterIntents(p.universalPlan(ctx, in, vocab.Codes), tier1Intents)
	case types.PhaseTier2:
		if len(in.DiffFeatures) > 0 {
			items = append(items, p.diffPlan(ctx, in)...)
		}
		items = append(items, filterIntents(p.universalPlan(ctx, in, vocab.Codes), tier2Intents)...)
	case types.PhaseTier3:
		items = p.fallbackPlan(in.Matrix, vocab.Codes)
	default:
		return nil
	}

	strategies := p.translate(items, vocab)
	out := dedup(strategies, in.ExecutedQueries)
	p.logger.InfoContext(ctx, "planned strategies",
		"phase", in.Phase, "items", len(items), "strategies", len(out))
	return out
}

// activeCodes prefers the validated codes over the report's own.
func (p *Planner) activeCodes(validated []string) []string {
	if len(validated) > 0 {
		return validated
	}
	return types.NormalizeCodes(p.report.ClassificationCodes)
}

func (p *Planner) universalPlan(ctx context.Context, in Input, codes []string) []types.PlanItem {
	executed := make([]string, len(in.ExecutedIntents))
	for i, intent := range in.ExecutedIntents {
		executed[i] = string(intent)
	}
	prompt, err := render(planPromptTmpl, promptData{
		Report: p.report, Matrix: in.Matrix, Codes: codes, Executed: executed,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "plan prompt", "err", err)
		return nil
	}

	reply, err := llm.Generate[planReply](ctx, p.client, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		SchemaName:   SchemaPlan,
		Temperature:  llm.Temp(0.3),
	}, p.attempts)
	if err != nil {
		p.logger.WarnContext(ctx, "universal plan failed", "phase", in.Phase, "err", err)
		return nil
	}

	var items []types.PlanItem
	for _, e := range reply.Strategies {
		intent := types.Intent(e.Intent)
		if !intent.Valid() || len(e.Components) == 0 {
			continue
		}
		items = append(items, types.PlanItem{
			Name:       e.Name,
			Intent:     intent,
			Proximity:  types.Proximity(e.Proximity),
			Components: e.Components,
		})
	}
	return items
}

func (p *Planner) diffPlan(ctx context.Context, in Input) []types.PlanItem {
	prompt, err := render(diffPromptTmpl, promptData{Report: p.report, Matrix: in.Matrix, Diff: in.DiffFeatures})
	if err != nil {
		p.logger.ErrorContext(ctx, "diff prompt", "err", err)
		return nil
	}

	reply, err := llm.Generate[diffReply](ctx, p.client, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		SchemaName:   SchemaDiff,
		Temperature:  llm.Temp(0.3),
	}, p.attempts)
	if err != nil {
		p.logger.WarnContext(ctx, "diff plan failed", "diff", in.DiffFeatures, "err", err)
		return nil
	}

	var items []types.PlanItem
	for _, e := range reply.Strategies {
		intent := types.Intent(e.Intent)
		if intent != types.IntentFunctional && intent != types.IntentComponent {
			intent = types.IntentFunctional
		}
		if len(e.KeywordGroups) == 0 {
			continue
		}
		items = append(items, types.PlanItem{
			Name:       e.Name,
			Intent:     intent,
			Proximity:  types.Proximity(e.Proximity),
			Components: e.KeywordGroups,
			Keywords:   true,
		})
	}
	return items
}

// fallbackPlan is the deterministic Tier 3 plan: a semantic search on the
// technical means, classification-anchored searches per key feature, and
// an alternate-phrasing semantic search built from the matrix.
func (p *Planner) fallbackPlan(matrix types.ConceptMatrix, codes []string) []types.PlanItem {
	var items []types.PlanItem

	if means := cleanNarrative(p.report.TechnicalMeans); means != "" {
		items = append(items, types.PlanItem{
			Name:       "Semantic-TechnicalMeans",
			Intent:     types.IntentBroad,
			Proximity:  types.ProximityNaturalLanguage,
			Components: []string{means},
			Keywords:   true,
			Semantic:   true,
		})
	}

	keys := matrix.ByRole(types.RoleKeyFeature)
	if len(codes) > 0 {
		for _, k := range keys {
			items = append(items, types.PlanItem{
				Name:       "Broad-IPC-" + k.ID,
				Intent:     types.IntentBroad,
				Proximity:  types.ProximityBooleanAND,
				Components: []string{k.ID, types.ComponentIPC},
			})
		}
	}

	ids := conceptIDs(matrix.ByRole(types.RoleSubject))
	ids = append(ids, conceptIDs(keys)...)
	if len(ids) > 0 {
		items = append(items, types.PlanItem{
			Name:       "Semantic-Matrix",
			Intent:     types.IntentBroad,
			Proximity:  types.ProximityNaturalLanguage,
			Components: ids,
			Semantic:   true,
		})
		if p.scholar {
			items = append(items, types.PlanItem{
				Name:       "Fundamental-Literature",
				Intent:     types.IntentFundamental,
				Proximity:  types.ProximityNaturalLanguage,
				Components: ids,
			})
		}
	}
	return items
}

// translate renders items for their backends, dropping empty queries.
func (p *Planner) translate(items []types.PlanItem, vocab query.Vocabulary) []types.Strategy {
	var out []types.Strategy
	for i, item := range items {
		backend := p.backendFor(item.Intent)
		dialect, err := query.For(backend)
		if err != nil {
			p.logger.Error("no dialect", "backend", backend, "err", err)
			continue
		}
		q := strings.TrimSpace(dialect.Translate(item, vocab))
		if q == "" {
			continue
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = fmt.Sprintf("%s-%d", item.Intent, i+1)
		}
		out = append(out, types.Strategy{
			Name:     name,
			Intent:   item.Intent,
			Backend:  backend,
			Query:    q,
			Semantic: item.Semantic,
			Status:   types.StatusPending,
		})
	}
	return out
}

func (p *Planner) backendFor(intent types.Intent) string {
	if intent == types.IntentFundamental && p.scholar {
		return patentdb.ScholarName
	}
	return p.primary
}

// dedup drops strategies whose query was executed in an earlier round or
// already appears earlier in the batch. Keys are Strategy.Key values.
func dedup(strategies []types.Strategy, executed map[string]bool) []types.Strategy {
	seen := make(map[string]bool, len(strategies))
	var out []types.Strategy
	for _, s := range strategies {
		key := s.Key()
		if executed[key] || seen[key] {
			continue
		}
		seen[key] = true
		s.Status = types.StatusPending
		out = append(out, s)
	}
	return out
}

func filterIntents(items []types.PlanItem, allowed []types.Intent) []types.PlanItem {
	var out []types.PlanItem
	for _, item := range items {
		for _, a := range allowed {
			if item.Intent == a {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func conceptIDs(entries []types.ConceptEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// cleanNarrative strips citation markup and collapses whitespace.
func cleanNarrative(s string) string {
	s = markdownRef.ReplaceAllString(s, "$1")
	return strings.Join(strings.Fields(s), " ")
}
