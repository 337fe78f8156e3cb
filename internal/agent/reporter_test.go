// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// reportState builds a Tier2 session holding the given documents.
func reportState(t *testing.T, docs ...types.FoundDocument) *State {
	t.Helper()
	st := newTestState()
	st.Phase = types.PhaseTier2
	require.NoError(t, st.Apply(Delta{Documents: docs}))
	return st
}

func TestOutcomePriority(t *testing.T) {
	docs := []types.FoundDocument{doc("d1", "s"), doc("d2", "s")}

	st := reportState(t, docs...)
	assert.Equal(t, types.OutcomeNoArt, Outcome(st))

	require.NoError(t, st.Apply(Delta{
		Charts: map[string]types.ClaimChart{"d1": chart(50, "F1", "F2")},
		Best:   &BestMatch{UID: "d1", Missing: []string{"F3"}},
	}))
	assert.Equal(t, types.OutcomeClosestMatch, Outcome(st))

	require.NoError(t, st.Apply(Delta{Combination: &types.Combination{PrimaryUID: "d1", SecondaryUID: "d2", Feature: "F3"}}))
	assert.Equal(t, types.OutcomeCombination, Outcome(st))

	d1, _ := st.Documents.Get("d1")
	d1.NoveltyDestroying = true
	assert.Equal(t, types.OutcomeNoveltyDestroyed, Outcome(st))
}

func TestReportClosestMatchNarrative(t *testing.T) {
	d1 := doc("d1", "s")
	d1.PublicationNumber = "CN111222333A"
	st := reportState(t, d1)
	require.NoError(t, st.Apply(Delta{
		Charts: map[string]types.ClaimChart{"d1": chart(50, "F1")},
		Best:   &BestMatch{UID: "d1", Missing: []string{"F2", "F3"}},
	}))

	r := BuildReport(st, fixedTime)
	assert.Equal(t, types.OutcomeClosestMatch, r.Outcome)
	assert.Contains(t, r.Narrative, "D1 (CN111222333A) is the closest prior art")
	assert.Contains(t, r.Narrative, "Distinguishing features: F2, F3.")
	require.Len(t, r.RelevantDocuments, 1)
	assert.Equal(t, types.TagA, r.RelevantDocuments[0].Tag)
	assert.Equal(t, "D1", r.RelevantDocuments[0].Role)
	require.NotNil(t, r.RelevantDocuments[0].ClaimChart)
}

func TestReportCombinationNarrative(t *testing.T) {
	tests := []struct {
		name     string
		missing  []string
		want     []string
		unwanted []string
	}{
		{
			name:    "single gap",
			missing: []string{"F2"},
			want: []string{
				"Distinguishing features: F2.",
				`D2 (d2) discloses "F2" in "Spring latch"`,
				"lacks an inventive step over D1 in view of D2",
			},
			unwanted: []string{"Not disclosed by D1 or D2"},
		},
		{
			name:    "gaps left after D2",
			missing: []string{"F2", "F3"},
			want: []string{
				"Distinguishing features: F2, F3.",
				`D2 (d2) discloses "F2" in "Spring latch"`,
				"Not disclosed by D1 or D2: F3.",
				"only if these are common general knowledge",
			},
			unwanted: []string{"lacks an inventive step over D1 in view of D2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d2 := doc("d2", "s")
			d2.Title = "Spring latch"
			st := reportState(t, doc("d1", "s"), d2)
			require.NoError(t, st.Apply(Delta{
				Charts: map[string]types.ClaimChart{"d1": chart(50, "F1")},
				Best:   &BestMatch{UID: "d1", Missing: tt.missing},
			}))
			require.NoError(t, st.Apply(Delta{Combination: &types.Combination{PrimaryUID: "d1", SecondaryUID: "d2", Feature: "F2"}}))

			r := BuildReport(st, fixedTime)
			assert.Equal(t, types.OutcomeCombination, r.Outcome)
			for _, s := range tt.want {
				assert.Contains(t, r.Narrative, s)
			}
			for _, s := range tt.unwanted {
				assert.NotContains(t, r.Narrative, s)
			}
		})
	}
}

func TestReportTagsConflictingAndCapsBackground(t *testing.T) {
	var docs []types.FoundDocument
	for i, uid := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		d := doc(uid, "s")
		d.RerankScore = float64(10 - i)
		docs = append(docs, d)
	}
	docs[1].DateLogic = types.DateConflicting
	st := reportState(t, docs...)

	r := BuildReport(st, fixedTime)
	require.Len(t, r.RelevantDocuments, maxOtherDocuments)
	assert.Equal(t, "a", r.RelevantDocuments[0].UID)
	assert.Equal(t, types.TagE, r.RelevantDocuments[1].Tag)
	assert.Equal(t, types.TagA, r.RelevantDocuments[2].Tag)
	assert.Equal(t, 7, r.Metrics.TotalHits)
}

func TestReportNoveltyNarrativeListsFeatures(t *testing.T) {
	x := doc("x", "s")
	x.DateLogic = types.DateConflicting
	st := reportState(t, x)
	c := chart(99, "F1", "F2", "F3")
	c.Matches[0].EvidenceQuote = "arms fold"
	require.NoError(t, st.Apply(Delta{Charts: map[string]types.ClaimChart{"x": c}, Best: &BestMatch{UID: "x"}}))

	r := BuildReport(st, fixedTime)
	assert.Equal(t, types.OutcomeNoveltyDestroyed, r.Outcome)
	assert.Equal(t, types.TagE, r.RelevantDocuments[0].Tag, "a conflicting application is cited for novelty as E")
	assert.Contains(t, r.Narrative, "conflicting application")
	assert.Contains(t, r.Narrative, `- F1: Disclosed ("arms fold")`)
}

func TestReportFileRoundTrip(t *testing.T) {
	st := reportState(t, doc("d1", "s"))
	r := BuildReport(st, fixedTime)

	for _, name := range []string{"report.yaml", "out/report.json"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, WriteReport(path, r))

		got, err := ReadReport(path)
		require.NoError(t, err)
		assert.Equal(t, r.SessionID, got.SessionID)
		assert.Equal(t, r.Outcome, got.Outcome)
		assert.Len(t, got.RelevantDocuments, 1)
		assert.True(t, got.CreatedAt.Equal(fixedTime))
	}
}

func TestReadCase(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "case.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
priority_date: "2019-06-30"
report:
  subject_matter: foldable drone
  technical_means: arms fold about a vertical hinge
  features:
    - name: folding arm
      score: 5
`), 0o644))

	c, err := ReadCase(good)
	require.NoError(t, err)
	assert.Equal(t, "foldable drone", c.Report.SubjectMatter)
	date, err := c.CriticalDate()
	require.NoError(t, err)
	assert.Equal(t, "20190630", date)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"report":{"subject_matter":"x"}}`), 0o644))
	_, err = ReadCase(empty)
	assert.ErrorContains(t, err, "no features")

	_, err = ReadCase(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
