// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review scores candidate references against the target features
// and searches for inventive-step combinations.
package review

import (
	"context"
	"log/slog"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Scorer charts documents against the target features.
type Scorer interface {
	Score(ctx context.Context, doc *types.FoundDocument) (types.ClaimChart, error)
	CheckFeature(ctx context.Context, doc *types.FoundDocument, feature string) (types.SecondaryCheck, error)
}

// Result is the outcome of one review pass. Documents are referenced by
// UID; the caller applies the charts to its own state.
type Result struct {
	// Reviewed lists every UID passed to the scorer, in scoring order.
	Reviewed []string

	// Charts holds the claim chart of each reviewed UID. Failed scoring
	// yields an empty chart.
	Charts map[string]types.ClaimChart

	// BestUID is the reviewed document with the most disclosed features,
	// or "" when none discloses any.
	BestUID string

	// FullMatch is set when BestUID discloses every target feature.
	FullMatch bool

	// Missing names the features BestUID does not disclose.
	Missing []string
}

// Reviewer runs review passes and combination searches.
type Reviewer struct {
	scorer              Scorer
	batch               int
	secondaryCandidates int
	logger              *slog.Logger
}

// NewReviewer returns a reviewer that scores at most batch documents per
// pass and checks at most secondaryCandidates references per missing feature.
func NewReviewer(scorer Scorer, batch, secondaryCandidates int) *Reviewer {
	return &Reviewer{
		scorer:              scorer,
		batch:               batch,
		secondaryCandidates: secondaryCandidates,
		logger:              slog.Default().With("component", "review"),
	}
}

// Review scores the best-ranked unreviewed candidates one at a time. A
// candidate that discloses every feature ends the pass immediately.
func (r *Reviewer) Review(ctx context.Context, candidates []*types.FoundDocument, reviewed map[string]bool) Result {
	res := Result{Charts: make(map[string]types.ClaimChart)}

	var queue []*types.FoundDocument
	for _, d := range candidates {
		if !reviewed[d.UID] {
			queue = append(queue, d)
		}
	}
	types.SortByRerank(queue)
	if len(queue) > r.batch {
		queue = queue[:r.batch]
	}

	bestCount := 0
	for _, doc := range queue {
		if ctx.Err() != nil {
			break
		}
		chart, err := r.scorer.Score(ctx, doc)
		if err != nil {
			r.logger.WarnContext(ctx, "scoring failed, recording empty chart", "uid", doc.UID, "err", err)
			chart = types.ClaimChart{}
		}
		res.Reviewed = append(res.Reviewed, doc.UID)
		res.Charts[doc.UID] = chart

		if chart.FullMatch() {
			r.logger.InfoContext(ctx, "novelty-destroying reference", "uid", doc.UID, "score", chart.MatchScore)
			res.BestUID = doc.UID
			res.FullMatch = true
			res.Missing = nil
			return res
		}
		if n := chart.DisclosedCount(); n > bestCount {
			bestCount = n
			res.BestUID = doc.UID
		}
	}
	if res.BestUID != "" {
		res.Missing = res.Charts[res.BestUID].Missing()
	}

	r.logger.InfoContext(ctx, "review pass",
		"scored", len(res.Reviewed), "best", res.BestUID, "disclosed", bestCount, "missing", len(res.Missing))
	return res
}

// FindCombination looks for a secondary reference supplying one of the
// missing features of primary. Features are tried in order and the first
// confirmed pairing wins. Candidates exclude primary and are tried by
// rerank score. Conflicting applications count for novelty only, so they
// never take part on either side.
func (r *Reviewer) FindCombination(ctx context.Context, primary *types.FoundDocument, missing []string, candidates []*types.FoundDocument) *types.Combination {
	if primary == nil || len(missing) == 0 || primary.DateLogic == types.DateConflicting {
		return nil
	}

	var pool []*types.FoundDocument
	for _, d := range candidates {
		if d.UID != primary.UID && d.DateLogic != types.DateConflicting {
			pool = append(pool, d)
		}
	}
	types.SortByRerank(pool)
	if len(pool) > r.secondaryCandidates {
		pool = pool[:r.secondaryCandidates]
	}

	for _, feature := range missing {
		for _, doc := range pool {
			if ctx.Err() != nil {
				return nil
			}
			check, err := r.scorer.CheckFeature(ctx, doc, feature)
			if err != nil {
				r.logger.WarnContext(ctx, "secondary check failed", "uid", doc.UID, "feature", feature, "err", err)
				continue
			}
			if !check.Disclosed {
				continue
			}
			r.logger.InfoContext(ctx, "inventive combination",
				"primary", primary.UID, "secondary", doc.UID, "feature", feature)
			return &types.Combination{
				PrimaryUID:   primary.UID,
				SecondaryUID: doc.UID,
				Feature:      feature,
				Evidence:     check.Evidence,
				Reasoning:    check.Reasoning,
			}
		}
	}
	return nil
}
