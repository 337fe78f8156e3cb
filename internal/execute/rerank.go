// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package execute

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Rerank weights.
const (
	maxBaseScore      = 5.0
	coverageWeight    = 20.0
	conflictingBoost  = 5.0
	precisionBoost    = 2.0
	rawScoreScaleDown = 10.0
)

// anchorToken splits text into runs of Chinese characters or ASCII words.
var anchorToken = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+|[a-zA-Z0-9]+`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "of": true,
	"for": true, "with": true, "by": true, "is": true, "are": true,
	"method": true, "device": true, "system": true, "apparatus": true,
	"comprising": true, "includes": true,
	"一种": true, "所述": true, "包括": true, "特征": true, "在于": true,
	"其中": true, "或者": true, "以及": true,
}

// Reranker orders documents for review. It only assigns scores; it never
// drops a document.
type Reranker struct{}

// Keywords returns the lower-cased anchor tokens longer than one character,
// minus stopwords.
func (Reranker) Keywords(anchor string) map[string]bool {
	anchor = strings.NewReplacer("**", "", "__", "", "##", "").Replace(anchor)
	out := make(map[string]bool)
	for _, t := range anchorToken.FindAllString(anchor, -1) {
		t = strings.ToLower(t)
		if len([]rune(t)) > 1 && !stopwords[t] {
			out[t] = true
		}
	}
	return out
}

// Score combines the normalized backend score, the share of anchor keywords
// found in the title and abstract, and the intent boosts.
func (Reranker) Score(keywords map[string]bool, d types.FoundDocument) float64 {
	score := math.Min(d.RawScore/rawScoreScaleDown, maxBaseScore)

	if len(keywords) > 0 {
		content := strings.ToLower(d.Title + " " + d.Abstract)
		hits := 0
		for kw := range keywords {
			if strings.Contains(content, kw) {
				hits++
			}
		}
		score += float64(hits) / float64(len(keywords)) * coverageWeight
	}

	if d.DateLogic == types.DateConflicting {
		score += conflictingBoost
	}
	if d.SourceIntent == types.IntentPrecision {
		score += precisionBoost
	}
	return score
}

// Rerank sets RerankScore on each document and sorts docs by it, highest
// first. Ties keep input order. An anchor without keywords leaves docs as
// they are.
func (r Reranker) Rerank(anchor string, docs []types.FoundDocument) {
	keywords := r.Keywords(anchor)
	if len(keywords) == 0 {
		return
	}
	for i := range docs {
		docs[i].RerankScore = r.Score(keywords, docs[i])
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].RerankScore > docs[j].RerankScore
	})
}
