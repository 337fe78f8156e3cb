// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package execute

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

func TestRerankerKeywords(t *testing.T) {
	got := Reranker{}.Keywords("A **method** of X-ray 一种无人机 for the Drone")
	assert.Equal(t, map[string]bool{"ray": true, "一种无人机": true, "drone": true}, got)
}

func TestRerankerScore(t *testing.T) {
	r := Reranker{}
	kw := r.Keywords("folding arm drone")

	tests := []struct {
		name string
		doc  types.FoundDocument
		want float64
	}{
		{
			name: "raw score capped at five",
			doc:  types.FoundDocument{RawScore: 88},
			want: 5,
		},
		{
			name: "coverage",
			doc:  types.FoundDocument{Title: "Folding drone", RawScore: 10},
			want: 1 + 2.0/3.0*20,
		},
		{
			name: "precision boost",
			doc:  types.FoundDocument{SourceIntent: types.IntentPrecision},
			want: 2,
		},
		{
			name: "conflicting boost",
			doc:  types.FoundDocument{DateLogic: types.DateConflicting, SourceIntent: types.IntentConflicting},
			want: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.Score(kw, tt.doc), 1e-9)
		})
	}
}

func TestRerankKeepsEveryDocument(t *testing.T) {
	docs := []types.FoundDocument{
		{UID: "a", Title: "unrelated"},
		{UID: "b", Title: "drone arm"},
		{UID: "c", Title: "unrelated too"},
	}
	Reranker{}.Rerank("drone arm", docs)

	assert.Len(t, docs, 3)
	assert.Equal(t, "b", docs[0].UID)
	assert.Equal(t, "a", docs[1].UID, "ties keep input order")
	assert.Equal(t, "c", docs[2].UID)
}

func TestRerankEmptyAnchorKeepsOrder(t *testing.T) {
	docs := []types.FoundDocument{{UID: "a"}, {UID: "b", Title: "drone"}}
	Reranker{}.Rerank("a of", docs)
	assert.Equal(t, "a", docs[0].UID)
	assert.Zero(t, docs[1].RerankScore)
}

func TestAnalyzeClassificationCodes(t *testing.T) {
	docs := []*types.FoundDocument{
		{ClassificationCodes: []string{"H04W 72/04", "G06F 3/01"}},
		{ClassificationCodes: []string{"H04W72/12", "A01B 1/00"}},
		{ClassificationCodes: []string{"g06f3/048", "H04W 72/00", "not-a-code"}},
	}
	assert.Equal(t, []string{"H04W72", "G06F3"}, AnalyzeClassificationCodes(docs, 8))
	assert.Equal(t, []string{"H04W72"}, AnalyzeClassificationCodes(docs, 1))
	assert.Empty(t, AnalyzeClassificationCodes(docs[:1], 8))
}
