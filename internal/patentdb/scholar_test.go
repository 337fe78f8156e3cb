// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patentdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

func withScholarServer(t *testing.T, h http.HandlerFunc) *Scholar {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	old := semanticAPIBase
	semanticAPIBase = ts.URL + "/"
	t.Cleanup(func() { semanticAPIBase = old })

	return NewScholar(types.PatentDBConfig{SemanticScholarAPIKey: "s2-key", MaxRetries: 1})
}

func TestScholarSearch(t *testing.T) {
	var gotDate, gotKey string
	b := withScholarServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)
		gotDate = r.URL.Query().Get("publicationDateOrYear")
		gotKey = r.Header.Get("x-api-key")
		fmt.Fprint(w, `{"total": 120, "data": [
			{"paperId":"abc","title":"Foldable quadrotor","abstract":"We fold arms.","publicationDate":"2017-05-02",
			 "externalIds":{"DOI":"10.1000/fold"},"fieldsOfStudy":["Engineering"]},
			{"paperId":"def","title":"Old work","year":1999}
		]}`)
	})

	res, err := b.Search(context.Background(), Request{Query: "foldable drone arm", ToDate: "20200101"})
	require.NoError(t, err)
	assert.Equal(t, ":2020-01-01", gotDate)
	assert.Equal(t, "s2-key", gotKey)
	assert.Equal(t, 120, res.Total)
	require.Len(t, res.Hits, 2)

	assert.Equal(t, "abc", res.Hits[0].UID)
	assert.Equal(t, "DOI:10.1000/fold", res.Hits[0].PublicationNumber)
	assert.Equal(t, "20170502", res.Hits[0].PublicationDate)
	assert.Equal(t, []string{"Engineering"}, res.Hits[0].ClassificationCodes)
	assert.Equal(t, "19990101", res.Hits[1].PublicationDate)
}

func TestScholarCitations(t *testing.T) {
	b := withScholarServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper/DOI:10.1000/fold/citations":
			fmt.Fprint(w, `{"data":[{"citingPaper":{"paperId":"c1","title":"Citing"}}]}`)
		case "/paper/DOI:10.1000/fold/references":
			fmt.Fprint(w, `{"data":[{"citedPaper":{"paperId":"r1","title":"Cited"}},{"citedPaper":{}}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	hits, err := b.Citations(context.Background(), "DOI:10.1000/fold", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].UID)
	assert.Equal(t, "r1", hits[1].UID)
}

func TestScholarEmptyQuery(t *testing.T) {
	_, err := NewScholar(types.PatentDBConfig{}).Search(context.Background(), Request{Query: "  "})
	assert.Error(t, err)
}
