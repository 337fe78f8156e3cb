// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package execute

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Source strategy names of lineage documents.
const (
	LineageFamily   = "Lineage-Family"
	LineageCitation = "Lineage-Citation"
)

type lineageFetch struct {
	seed     *types.FoundDocument
	strategy string
}

// ExpandHighValue fetches the family members and citations of the top
// cfg.ExpandSeeds seeds by rerank score, concurrently. Returned documents
// carry intent Lineage and are unique by UID; the seeds themselves and
// documents published after criticalDate are left out. Fetch failures are
// logged and skipped.
func (e *Engine) ExpandHighValue(ctx context.Context, seeds []*types.FoundDocument, criticalDate, anchor string) []types.FoundDocument {
	ranked := append([]*types.FoundDocument(nil), seeds...)
	types.SortByRerank(ranked)
	if len(ranked) > e.cfg.ExpandSeeds {
		ranked = ranked[:e.cfg.ExpandSeeds]
	}
	if len(ranked) == 0 {
		return nil
	}

	var fetches []lineageFetch
	for _, seed := range ranked {
		fetches = append(fetches,
			lineageFetch{seed: seed, strategy: LineageFamily},
			lineageFetch{seed: seed, strategy: LineageCitation})
	}
	results := make([][]patentdb.Hit, len(fetches))

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, f := range fetches {
		g.Go(func() error {
			results[i] = e.fetchLineage(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	skip := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		skip[s.UID] = true
	}
	var out []types.FoundDocument
	for i, hits := range results {
		f := fetches[i]
		for _, h := range hits {
			if h.UID == "" || skip[h.UID] {
				continue
			}
			if criticalDate != "" && h.PublicationDate > criticalDate {
				continue
			}
			skip[h.UID] = true
			out = append(out, toDocument(h, f.seed.Backend, f.strategy, types.IntentLineage))
		}
	}
	if anchor != "" {
		e.reranker.Rerank(anchor, out)
	}

	e.logger.InfoContext(ctx, "lineage expanded", "seeds", len(ranked), "documents", len(out))
	return out
}

func (e *Engine) fetchLineage(ctx context.Context, f lineageFetch) []patentdb.Hit {
	client, err := e.registry.Get(f.seed.Backend)
	if err != nil {
		e.logger.WarnContext(ctx, "lineage backend", "uid", f.seed.UID, "err", err)
		return nil
	}
	number := f.seed.PublicationNumber
	if number == "" {
		number = f.seed.UID
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	var hits []patentdb.Hit
	if f.strategy == LineageFamily {
		hits, err = client.Family(ctx, number, e.cfg.ExpandLimit)
	} else {
		hits, err = client.Citations(ctx, number, e.cfg.ExpandLimit)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "lineage fetch failed",
			"uid", f.seed.UID, "kind", f.strategy, "err", err)
		return nil
	}
	return hits
}
