// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/internal/llm/llmtest"
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

func droneReport() types.TechnicalReport {
	return types.TechnicalReport{
		Title:          "Foldable drone",
		SubjectMatter:  "drone",
		TechnicalField: "unmanned aerial vehicles",
		TechnicalMeans: "The **arm** [1] folds about a hinge and locks with a latch.",
		Features: []types.Feature{
			{Name: "folding arm", Score: 5},
			{Name: "hinge latch", Score: 4},
			{Name: "carbon frame", Score: 2},
			{Name: "battery bay", Score: 3},
			{Name: "paint", Score: 1},
		},
		ClassificationCodes: []string{"B64C 39/02"},
		Applicants:          []string{"Acme UAV"},
	}
}

func TestSkeletonRoles(t *testing.T) {
	m, err := Skeleton(droneReport())
	require.NoError(t, err)

	var roles []string
	for _, e := range m {
		roles = append(roles, e.ID+":"+string(e.Role)+":"+strings.Join(e.Terms(), "/"))
	}
	assert.Equal(t, []string{
		"A1:Subject:drone",
		"B1:KeyFeature:folding arm",
		"B2:KeyFeature:hinge latch",
		"C1:Functional:battery bay",
		"C2:Functional:carbon frame",
	}, roles)
	assert.Equal(t, []string{"B64C39/02"}, m[0].ClassificationCodes)
}

func TestSkeletonPromotesLowScoredFeatures(t *testing.T) {
	m, err := Skeleton(types.TechnicalReport{
		SubjectMatter: "蓄电池",
		Features:      []types.Feature{{Name: "外壳", Score: 1}, {Name: "cap", Score: 1}},
	})
	require.NoError(t, err)
	require.Len(t, m, 3)
	assert.Equal(t, []string{"蓄电池"}, m[0].LocalTerms)
	assert.Len(t, m.ByRole(types.RoleKeyFeature), 2)
	assert.Empty(t, m.ByRole(types.RoleFunctional))
}

func TestSkeletonSubjectFallback(t *testing.T) {
	features := []types.Feature{{Name: "folding arm", Score: 5}, {Name: "hinge latch", Score: 4}}
	tests := []struct {
		name   string
		report types.TechnicalReport
		want   string
	}{
		{"title", types.TechnicalReport{Title: "Foldable drone", TechnicalField: "aerial vehicles", Features: features}, "Foldable drone"},
		{"technical field", types.TechnicalReport{Title: "  ", TechnicalField: "aerial vehicles", Features: features}, "aerial vehicles"},
		{"top feature", types.TechnicalReport{Features: features}, "folding arm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Skeleton(tt.report)
			require.NoError(t, err)
			subjects := m.ByRole(types.RoleSubject)
			require.Len(t, subjects, 1)
			assert.Equal(t, []string{tt.want}, subjects[0].Terms())
		})
	}
}

func TestSkeletonNoFeatures(t *testing.T) {
	_, err := Skeleton(types.TechnicalReport{SubjectMatter: "x"})
	assert.ErrorIs(t, err, ErrNoUsableFeatures)
}

func TestBuildInitialMatrixMergesExpansion(t *testing.T) {
	fake := llmtest.New().Reply(SchemaMatrix, matrixReply{Concepts: []conceptTerms{
		{ConceptID: "B1", EnglishTerms: []string{"Folding Arm", "foldable boom"}, LocalTerms: []string{"折叠臂"}, ClassificationCodes: []string{"b64c 39/02"}, FeatureType: "structure"},
		{ConceptID: "Z9", EnglishTerms: []string{"ignored"}},
	}})
	p := New(fake, droneReport(), Options{Attempts: 1})

	m, err := p.BuildInitialMatrix(context.Background())
	require.NoError(t, err)

	b1, ok := m.Find("B1")
	require.True(t, ok)
	assert.Equal(t, []string{"folding arm", "foldable boom"}, b1.EnglishTerms)
	assert.Equal(t, []string{"折叠臂"}, b1.LocalTerms)
	assert.Equal(t, []string{"B64C39/02"}, b1.ClassificationCodes)
	assert.Equal(t, "structure", b1.FeatureType)
	_, ok = m.Find("Z9")
	assert.False(t, ok)
}

func TestBuildInitialMatrixFallsBackToSkeleton(t *testing.T) {
	fake := llmtest.New().Fail(SchemaMatrix, errors.New("model down"))
	p := New(fake, droneReport(), Options{Attempts: 1})

	m, err := p.BuildInitialMatrix(context.Background())
	require.NoError(t, err)
	assert.True(t, m.HasKeyFeature())
}

func TestBuildInitialMatrixNoFeaturesIsTerminal(t *testing.T) {
	p := New(llmtest.New(), types.TechnicalReport{SubjectMatter: "x"}, Options{})
	_, err := p.BuildInitialMatrix(context.Background())
	assert.ErrorIs(t, err, ErrNoUsableFeatures)
}

func testMatrix() types.ConceptMatrix {
	return types.ConceptMatrix{
		{ID: "A1", Role: types.RoleSubject, EnglishTerms: []string{"drone"}},
		{ID: "B1", Role: types.RoleKeyFeature, EnglishTerms: []string{"fold*"}},
		{ID: "B2", Role: types.RoleKeyFeature, EnglishTerms: []string{"latch*"}},
		{ID: "C1", Role: types.RoleFunctional, EnglishTerms: []string{"storage"}},
	}
}

func universal() planReply {
	return planReply{Strategies: []planEntry{
		{Name: "precise", Intent: "Precision", Proximity: "SameSentence", Components: []string{"A1", "B1"}},
		{Name: "synergy", Intent: "Synergy", Proximity: "SameSentence", Components: []string{"B1", "B2"}},
		{Name: "e-check", Intent: "ConflictingPriorArt", Proximity: "BooleanAND", Components: []string{"B1"}},
		{Name: "rival", Intent: "Competitor", Proximity: "BooleanAND", Components: []string{"Assignee", "B1"}},
		{Name: "func", Intent: "Functional", Proximity: "SameParagraph", Components: []string{"B1", "C1"}},
		{Name: "bogus", Intent: "Astrology", Components: []string{"B1"}},
		{Name: "dup", Intent: "Precision", Proximity: "SameSentence", Components: []string{"A1", "B1"}},
	}}
}

func TestPlanTier1FiltersAndDedups(t *testing.T) {
	fake := llmtest.New().Reply(SchemaPlan, universal())
	p := New(fake, droneReport(), Options{Primary: patentdb.PatSnapName, Attempts: 1})

	got := p.PlanForPhase(context.Background(), Input{
		Phase:           types.PhaseTier1,
		Matrix:          testMatrix(),
		ExecutedQueries: map[string]bool{"patsnap:TAC:((fold*) s (latch*))": true},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "precise", got[0].Name)
	assert.Equal(t, "TAC:((drone) s (fold*))", got[0].Query)
	assert.Equal(t, types.IntentConflicting, got[1].Intent)
	assert.Equal(t, "TAC:((fold*))", got[1].Query)
	for _, s := range got {
		assert.Equal(t, types.StatusPending, s.Status)
		assert.Equal(t, patentdb.PatSnapName, s.Backend)
	}
}

func TestPlanTier2TargetsDiffFeatures(t *testing.T) {
	fake := llmtest.New().
		Reply(SchemaPlan, universal()).
		Reply(SchemaDiff, diffReply{Strategies: []diffEntry{
			{Name: "latch D2", Intent: "Component", Proximity: "SameParagraph", KeywordGroups: []string{"latch*|detent*", "arm*"}},
		}})
	p := New(fake, droneReport(), Options{Attempts: 1})

	got := p.PlanForPhase(context.Background(), Input{
		Phase:        types.PhaseTier2,
		Matrix:       testMatrix(),
		DiffFeatures: []string{"hinge latch"},
	})

	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"latch D2", "rival", "func"}, names)
	assert.Equal(t, "DESC:((latch* OR detent*) p (arm*))", got[0].Query)
	assert.Equal(t, "TAC:((fold*)) AND ANS:(Acme UAV)", got[1].Query)

	req := fake.Requests(SchemaDiff)
	require.Len(t, req, 1)
	assert.Contains(t, req[0].UserPrompt, "- hinge latch")
}

func TestPlanTier2WithoutDiffSkipsDiffPlan(t *testing.T) {
	fake := llmtest.New().Reply(SchemaPlan, universal())
	p := New(fake, droneReport(), Options{Attempts: 1})

	got := p.PlanForPhase(context.Background(), Input{Phase: types.PhaseTier2, Matrix: testMatrix()})
	assert.Len(t, got, 2)
	assert.Zero(t, fake.Calls(SchemaDiff))
}

func TestPlanFailureYieldsEmptyList(t *testing.T) {
	fake := llmtest.New().Fail(SchemaPlan, errors.New("boom"))
	p := New(fake, droneReport(), Options{Attempts: 1})

	got := p.PlanForPhase(context.Background(), Input{Phase: types.PhaseTier1, Matrix: testMatrix()})
	assert.Empty(t, got)
}

func TestPlanTier3IsDeterministic(t *testing.T) {
	fake := llmtest.New()
	p := New(fake, droneReport(), Options{Primary: patentdb.PatSnapName, Scholar: true})

	got := p.PlanForPhase(context.Background(), Input{
		Phase:          types.PhaseTier3,
		Matrix:         testMatrix(),
		ValidatedCodes: []string{"B64C39/02", "B64U10/00"},
	})

	require.Len(t, got, 5)
	assert.True(t, got[0].Semantic)
	assert.Equal(t, "The arm folds about a hinge and locks with a latch.", got[0].Query)
	assert.Equal(t, "TAC:((fold*)) AND IPC:(B64C39/02 OR B64U10/00)", got[1].Query)
	assert.Equal(t, "TAC:((latch*)) AND IPC:(B64C39/02 OR B64U10/00)", got[2].Query)
	assert.Equal(t, "drone fold latch", got[3].Query)
	assert.Equal(t, types.IntentFundamental, got[4].Intent)
	assert.Equal(t, patentdb.ScholarName, got[4].Backend)
	assert.Equal(t, "drone fold latch", got[4].Query)
	assert.Zero(t, fake.Calls(SchemaPlan))
}

func TestPlanDoneIsEmpty(t *testing.T) {
	p := New(llmtest.New(), droneReport(), Options{})
	assert.Nil(t, p.PlanForPhase(context.Background(), Input{Phase: types.PhaseDone}))
}

var _ llm.Client = (*llmtest.Fake)(nil)
