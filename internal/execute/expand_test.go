// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package execute

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/internal/llm/llmtest"
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/internal/patentdb/patentdbtest"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

func seed(uid, number string, score float64) *types.FoundDocument {
	return &types.FoundDocument{
		UID:               uid,
		PublicationNumber: number,
		Backend:           patentdb.PatSnapName,
		RerankScore:       score,
	}
}

func TestExpandHighValue(t *testing.T) {
	fake := patentdbtest.New(patentdb.PatSnapName).
		WithFamily("CN100A",
			patentdb.Hit{UID: "fam-1", PublicationDate: "20180101"},
			patentdb.Hit{UID: "late", PublicationDate: "20210101"}).
		WithCitations("CN100A",
			patentdb.Hit{UID: "cit-1"},
			patentdb.Hit{UID: "fam-1"},
			patentdb.Hit{UID: "u200"}).
		WithCitations("CN300A", patentdb.Hit{UID: "never"})
	e := newEngine(t, fake)

	seeds := []*types.FoundDocument{
		seed("u300", "CN300A", 1),
		seed("u100", "CN100A", 30),
		seed("u200", "CN200A", 20),
	}
	got := e.ExpandHighValue(context.Background(), seeds, critical, "")

	var uids []string
	for _, d := range got {
		uids = append(uids, d.UID)
		assert.Equal(t, types.IntentLineage, d.SourceIntent)
		assert.Equal(t, types.DatePriorArt, d.DateLogic)
	}
	// "late" postdates the critical date; "u200" is itself a seed.
	assert.Equal(t, []string{"fam-1", "cit-1", "never"}, uids)
	assert.Equal(t, LineageFamily, got[0].SourceStrategy)
	assert.Equal(t, LineageCitation, got[1].SourceStrategy)
}

func TestExpandHighValueSeedCap(t *testing.T) {
	fake := patentdbtest.New(patentdb.PatSnapName).
		WithFamily("CN100A", patentdb.Hit{UID: "a"}).
		WithFamily("CN200A", patentdb.Hit{UID: "b"})
	e, err := New(patentdb.NewRegistry(fake), types.AgentConfig{ExpandSeeds: 1})
	require.NoError(t, err)
	defer e.Release()

	got := e.ExpandHighValue(context.Background(), []*types.FoundDocument{
		seed("u200", "CN200A", 5),
		seed("u100", "CN100A", 50),
	}, "", "")

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].UID)
}

func TestExpandHighValueUsesUIDWithoutNumber(t *testing.T) {
	fake := patentdbtest.New(patentdb.PatSnapName).
		WithFamily("uid-only", patentdb.Hit{UID: "f"})
	e := newEngine(t, fake)

	got := e.ExpandHighValue(context.Background(), []*types.FoundDocument{seed("uid-only", "", 1)}, "", "")
	require.Len(t, got, 1)
	assert.Equal(t, "f", got[0].UID)
}

func TestExpandHighValueNoSeeds(t *testing.T) {
	e := newEngine(t, patentdbtest.New(patentdb.PatSnapName))
	assert.Nil(t, e.ExpandHighValue(context.Background(), nil, critical, ""))
}

func harvestMatrix() types.ConceptMatrix {
	return types.ConceptMatrix{
		{ID: "A1", Role: types.RoleSubject, LocalTerms: []string{"无人机"}, EnglishTerms: []string{"drone"}},
		{ID: "B1", Role: types.RoleKeyFeature, EnglishTerms: []string{"folding arm"}},
	}
}

func TestHarvestNewKeywordsAppends(t *testing.T) {
	fake := llmtest.New().Reply(SchemaHarvest, harvestReply{Concepts: []harvestTerms{
		{ConceptID: "A1", NewLocalTerms: []string{"飞行器", "无人机"}, NewEnglishTerms: []string{"multicopter"}},
		{ConceptID: "B1", NewEnglishTerms: []string{"Folding Arm", "collapsible boom"}},
		{ConceptID: "Z9", NewEnglishTerms: []string{"ignored"}},
	}})
	e := newEngine(t, patentdbtest.New(patentdb.PatSnapName), WithLLM(fake, 1))

	before := harvestMatrix()
	docs := []*types.FoundDocument{
		{UID: "1", Title: "Multicopter", Abstract: "A collapsible boom..."},
		{UID: "2", Title: "second"},
		{UID: "3", Title: "third"},
		{UID: "4", Title: "fourth is never sent"},
	}
	got := e.HarvestNewKeywords(context.Background(), docs, before)

	assert.Equal(t, []string{"无人机", "飞行器"}, got[0].LocalTerms)
	assert.Equal(t, []string{"drone", "multicopter"}, got[0].EnglishTerms)
	assert.Equal(t, []string{"folding arm", "collapsible boom"}, got[1].EnglishTerms)
	assert.Equal(t, []string{"drone"}, before[0].EnglishTerms, "input matrix must not change")

	req := fake.Requests(SchemaHarvest)
	require.Len(t, req, 1)
	assert.True(t, req[0].Fast)
	assert.Contains(t, req[0].UserPrompt, "Title: third")
	assert.NotContains(t, req[0].UserPrompt, "fourth")
}

func TestHarvestNewKeywordsFailureKeepsMatrix(t *testing.T) {
	fake := llmtest.New().Fail(SchemaHarvest, errors.New("rate limited"))
	e := newEngine(t, patentdbtest.New(patentdb.PatSnapName), WithLLM(fake, 1))

	got := e.HarvestNewKeywords(context.Background(), []*types.FoundDocument{{UID: "1"}}, harvestMatrix())
	assert.Equal(t, harvestMatrix(), got)
}

func TestHarvestWithoutModelIsNoop(t *testing.T) {
	e := newEngine(t, patentdbtest.New(patentdb.PatSnapName))
	got := e.HarvestNewKeywords(context.Background(), []*types.FoundDocument{{UID: "1"}}, harvestMatrix())
	assert.Equal(t, harvestMatrix(), got)
}

func TestCorpusTruncates(t *testing.T) {
	long := make([]rune, 5000)
	for i := range long {
		long[i] = '字'
	}
	got := corpus([]*types.FoundDocument{{Title: "t", Abstract: string(long)}})
	assert.Len(t, []rune(got), maxCorpusRunes)
}
