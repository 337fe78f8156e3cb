// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveQuery("patsnap", types.IntentPrecision, types.StatusExecutedSuccess, 3, time.Second)
	m.ObserveLLM("search_plan", time.Second, nil)
	m.ObserveRound(types.PhaseTier1, nil)
	m.ObserveSession(types.OutcomeNoArt)
	assert.Nil(t, m.Registry())
}

func TestObserveQueryCounts(t *testing.T) {
	m := New()
	m.ObserveQuery("patsnap", types.IntentPrecision, types.StatusExecutedRelaxed, 12, 200*time.Millisecond)
	m.ObserveQuery("patsnap", types.IntentPrecision, types.StatusExecutedRelaxed, 4, 100*time.Millisecond)

	got := testutil.ToFloat64(m.queries.WithLabelValues("patsnap", "Precision", "ExecutedRelaxed"))
	assert.Equal(t, 2.0, got)
}

func TestObserveLLMResult(t *testing.T) {
	m := New()
	m.ObserveLLM("claim_chart", time.Second, nil)
	m.ObserveLLM("claim_chart", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("claim_chart", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("claim_chart", "error")))
}

func TestObserveRoundCountsIntents(t *testing.T) {
	m := New()
	m.ObserveRound(types.PhaseTier2, []*types.FoundDocument{
		{UID: "a", SourceIntent: types.IntentLineage},
		{UID: "b", SourceIntent: types.IntentLineage},
		{UID: "c", SourceIntent: types.IntentFunctional},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues("Tier2Inventive")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("Lineage")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveSession(types.OutcomeCombination)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `priorart_sessions_total{outcome="InventiveCombination"} 1`))
}
