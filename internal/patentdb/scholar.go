// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/priorart-engine/internal/httputil"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// ScholarName is the Semantic Scholar backend identifier.
const ScholarName = "semantic_scholar"

// semanticAPIBase is the Semantic Scholar graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/"

const semanticFields = "paperId,title,abstract,externalIds,year,publicationDate,fieldsOfStudy"

// Scholar searches non-patent literature on Semantic Scholar. It serves
// Fundamental strategies; dates are applied from Request.ToDate.
type Scholar struct {
	client     *http.Client
	apiKey     string
	userAgent  string
	maxRetries int
}

// NewScholar builds a client from cfg.
func NewScholar(cfg types.PatentDBConfig) *Scholar {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Scholar{
		client:     &http.Client{Timeout: timeout},
		apiKey:     cfg.SemanticScholarAPIKey,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// Name returns the backend identifier.
func (b *Scholar) Name() string { return ScholarName }

// Search runs a keyword search over papers.
func (b *Scholar) Search(ctx context.Context, req Request) (Result, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return Result{}, fmt.Errorf("empty Semantic Scholar query")
	}

	params := url.Values{
		"query":  {q},
		"limit":  {fmt.Sprintf("%d", min(limitOr(req.Limit, 20), 100))},
		"fields": {semanticFields},
	}
	if d := isoDate(req.ToDate); d != "" {
		params.Set("publicationDateOrYear", ":"+d)
	}

	var sr semanticResponse
	if err := b.get(ctx, "paper/search?"+params.Encode(), &sr); err != nil {
		return Result{}, err
	}

	res := Result{Total: sr.Total}
	for i, paper := range sr.Data {
		res.Hits = append(res.Hits, paper.hit(positionScore(i, len(sr.Data))))
	}
	return res, nil
}

// SearchSemantic uses the same relevance-ranked endpoint as Search.
func (b *Scholar) SearchSemantic(ctx context.Context, req Request) (Result, error) {
	return b.Search(ctx, req)
}

// Family is not meaningful for papers.
func (b *Scholar) Family(context.Context, string, int) ([]Hit, error) {
	return nil, ErrUnsupported
}

// Citations returns the papers citing uid and the papers uid references.
func (b *Scholar) Citations(ctx context.Context, uid string, limit int) ([]Hit, error) {
	if uid == "" {
		return nil, nil
	}
	limit = min(limitOr(limit, 20), 100)

	var out []Hit
	for _, edge := range []string{"citations", "references"} {
		path := fmt.Sprintf("paper/%s/%s?fields=%s&limit=%d",
			url.PathEscape(uid), edge, url.QueryEscape(semanticFields), limit)
		var resp semanticEdgeResponse
		if err := b.get(ctx, path, &resp); err != nil {
			return nil, err
		}
		for i, e := range resp.Data {
			p := e.CitingPaper
			if edge == "references" {
				p = e.CitedPaper
			}
			if p.PaperID == "" {
				continue
			}
			out = append(out, p.hit(positionScore(i, len(resp.Data))))
		}
	}
	return out, nil
}

// FullText is not offered; callers fall back to the abstract.
func (b *Scholar) FullText(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

func (b *Scholar) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	if b.apiKey != "" {
		req.Header.Set("x-api-key", b.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.maxRetries)
	if err != nil {
		return fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}
	return nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticEdgeResponse struct {
	Data []struct {
		CitingPaper semanticPaper `json:"citingPaper"`
		CitedPaper  semanticPaper `json:"citedPaper"`
	} `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	FieldsOfStudy   []string            `json:"fieldsOfStudy"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}

// hit converts a paper to a Hit. The UID is the paper ID so citation
// lookups can follow it; the DOI or arXiv ID is the display number.
func (p semanticPaper) hit(score float64) Hit {
	h := Hit{
		UID:                 p.PaperID,
		PublicationNumber:   p.PaperID,
		Title:               p.Title,
		Abstract:            p.Abstract,
		ClassificationCodes: p.FieldsOfStudy,
		Score:               score,
	}
	switch {
	case p.ExternalIDs.DOI != "":
		h.PublicationNumber = "DOI:" + p.ExternalIDs.DOI
	case p.ExternalIDs.ArXiv != "":
		h.PublicationNumber = "arXiv:" + p.ExternalIDs.ArXiv
	}
	if d, err := types.NormalizeDate(p.PublicationDate); err == nil {
		h.PublicationDate = d
	} else if p.Year > 0 {
		h.PublicationDate = fmt.Sprintf("%04d0101", p.Year)
	}
	return h
}
