// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.ArchiveConfig{Dir: t.TempDir(), MaxResults: 10})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, created time.Time, outcome types.Outcome, docs ...types.RelevantDocument) *types.SearchReport {
	return &types.SearchReport{
		SessionID:    id,
		CriticalDate: "20200101",
		Outcome:      outcome,
		CreatedAt:    created,
		SearchLog: []types.SearchLogEntry{
			{Round: 1, Phase: types.PhaseTier1, Name: "p1", Intent: types.IntentPrecision, Backend: "patsnap", Query: "TAC:(drone)", Status: types.StatusExecutedSuccess, Hits: 3},
		},
		RelevantDocuments: docs,
		Narrative:         "narrative of " + id,
		Metrics:           types.SearchMetrics{TotalQueries: 1, TotalHits: len(docs), Rounds: 1},
	}
}

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func TestSaveAndLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	chart := &types.ClaimChart{MatchScore: 70, Matches: []types.FeatureMatch{{FeatureID: "F1", FeatureName: "arm", Status: types.Disclosed}}}
	r := report("s1", t0, types.OutcomeClosestMatch,
		types.RelevantDocument{Tag: types.TagA, Role: "D1", UID: "u1", Title: "Foldable drone arm", Score: 9, ClaimChart: chart})

	require.NoError(t, s.Save(ctx, r))

	got, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, r.Outcome, got.Outcome)
	assert.Equal(t, r.Narrative, got.Narrative)
	require.Len(t, got.RelevantDocuments, 1)
	assert.Equal(t, 70, got.RelevantDocuments[0].ClaimChart.MatchScore)

	_, err = s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReplacesSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, report("s1", t0, types.OutcomeNoArt,
		types.RelevantDocument{Tag: types.TagA, UID: "old", Title: "obsolete propeller"})))
	require.NoError(t, s.Save(ctx, report("s1", t0, types.OutcomeClosestMatch,
		types.RelevantDocument{Tag: types.TagA, UID: "new", Title: "folding arm latch"})))

	docs, err := s.Documents(ctx, QueryOptions{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "new", docs[0].UID)
	assert.Equal(t, types.OutcomeClosestMatch, docs[0].Outcome)

	hits, err := s.Documents(ctx, QueryOptions{Query: "propeller"})
	require.NoError(t, err)
	assert.Empty(t, hits, "replaced titles leave the full-text index")
}

func TestSaveRequiresSessionID(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.Save(context.Background(), &types.SearchReport{}))
}

func TestSessionsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, report("old", t0, types.OutcomeNoArt)))
	require.NoError(t, s.Save(ctx, report("new", t0.Add(time.Hour), types.OutcomeCombination)))

	got, err := s.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, types.OutcomeCombination, got[0].Outcome)
	assert.True(t, got[0].CreatedAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, 1, got[1].TotalQueries)

	got, err = s.Sessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDocumentsSearchAndFilter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, report("s1", t0, types.OutcomeCombination,
		types.RelevantDocument{Tag: types.TagY, Role: "D1", UID: "d1", Title: "Drone with folding arms", Score: 8},
		types.RelevantDocument{Tag: types.TagY, Role: "D2", UID: "d2", Title: "Spring latch for hinges", Score: 6},
		types.RelevantDocument{Tag: types.TagE, UID: "e1", Title: "Folding drone frame", Score: 3},
	)))
	require.NoError(t, s.Save(ctx, report("s2", t0, types.OutcomeNoArt,
		types.RelevantDocument{Tag: types.TagA, UID: "a1", Title: "Camera gimbal", Score: 1},
	)))

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"full text", QueryOptions{Query: "folding"}, []string{"d1", "e1"}},
		{"full text with tag", QueryOptions{Query: "folding", Tag: types.TagE}, []string{"e1"}},
		{"tag only", QueryOptions{Tag: types.TagY}, []string{"d1", "d2"}},
		{"session only", QueryOptions{SessionID: "s2"}, []string{"a1"}},
		{"limit", QueryOptions{SessionID: "s1", MaxResults: 1}, []string{"d1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Documents(ctx, tt.opts)
			require.NoError(t, err)
			var uids []string
			for _, d := range got {
				uids = append(uids, d.UID)
			}
			assert.ElementsMatch(t, tt.want, uids)
		})
	}
}

func TestExecutedQueries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, report("s1", t0, types.OutcomeNoArt)))
	require.NoError(t, s.Save(ctx, report("s2", t0, types.OutcomeNoArt)))

	got, err := s.ExecutedQueries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"patsnap:TAC:(drone)"}, got)
}

func TestExportJSON(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, report("s1", t0, types.OutcomeClosestMatch,
		types.RelevantDocument{Tag: types.TagA, UID: "u1", Title: "Foldable drone"})))

	path, err := s.ExportJSON(ctx, QueryOptions{})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0]["uid"])
	assert.Equal(t, "s1", entries[0]["session_id"])

	path, err = s.ExportYAML(ctx, QueryOptions{Tag: types.TagX})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
