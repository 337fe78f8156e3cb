// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/priorart-engine/internal/httputil"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// PatentsViewName is the PatentsView backend identifier.
const PatentsViewName = "patentsview"

// patentsViewAPIBase is the PatentsView API root. Declared as a var so tests
// can substitute an httptest server.
var patentsViewAPIBase = "https://search.patentsview.org/api/v1/"

// patentsViewFields lists the fields requested for search hits.
const patentsViewFields = `["patent_id","patent_title","patent_abstract","patent_date","cpc_current.cpc_group_id","assignees.assignee_organization"]`

// patentNumOnlyPattern matches the leading digits of a patent identifier,
// stripping the kind code suffix (e.g., "7654321B2" -> "7654321").
var patentNumOnlyPattern = regexp.MustCompile(`^\d+`)

// PatentsView queries the USPTO PatentsView API. Boolean queries are
// PatentsView JSON query documents; proximity operators are not available.
type PatentsView struct {
	client     *http.Client
	apiKey     string
	userAgent  string
	maxRetries int
}

// NewPatentsView builds a client from cfg.
func NewPatentsView(cfg types.PatentDBConfig) *PatentsView {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PatentsView{
		client:     &http.Client{Timeout: timeout},
		apiKey:     cfg.PatentsViewAPIKey,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// Name returns the backend identifier.
func (b *PatentsView) Name() string { return PatentsViewName }

// Search runs a PatentsView JSON query. Date limits travel inside the query.
func (b *PatentsView) Search(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Result{}, fmt.Errorf("empty PatentsView query")
	}
	return b.searchPatents(ctx, req.Query, req.Limit)
}

// SearchSemantic approximates natural-language search with _text_any over
// title and abstract, restricted to patents granted before req.ToDate.
func (b *PatentsView) SearchSemantic(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return Result{}, fmt.Errorf("empty PatentsView query")
	}
	q := fmt.Sprintf(`{"_or":[{"_text_any":{"patent_title":"%s"}},{"_text_any":{"patent_abstract":"%s"}}]}`,
		escapeJSON(text), escapeJSON(text))
	if d := isoDate(req.ToDate); d != "" {
		q = fmt.Sprintf(`{"_and":[%s,{"_lt":{"patent_date":"%s"}}]}`, q, d)
	}
	return b.searchPatents(ctx, q, req.Limit)
}

// Family is not offered by PatentsView.
func (b *PatentsView) Family(context.Context, string, int) ([]Hit, error) {
	return nil, ErrUnsupported
}

// Citations returns the patents cited by number and the patents citing it.
func (b *PatentsView) Citations(ctx context.Context, number string, limit int) ([]Hit, error) {
	id := stripKindCode(strings.TrimPrefix(number, "US"))
	if id == "" {
		return nil, nil
	}

	var resp patentsViewCitationResponse
	backward := fmt.Sprintf(`{"patent_id":"%s"}`, escapeJSON(id))
	if err := b.get(ctx, "patent/us_patent_citation/", backward, `["patent_id","citation_patent_id"]`, limit, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		ids = append(ids, c.CitationPatentID)
	}

	resp = patentsViewCitationResponse{}
	forward := fmt.Sprintf(`{"citation_patent_id":"%s"}`, escapeJSON(id))
	if err := b.get(ctx, "patent/us_patent_citation/", forward, `["patent_id","citation_patent_id"]`, limit, &resp); err != nil {
		return nil, err
	}
	for _, c := range resp.Citations {
		ids = append(ids, c.PatentID)
	}

	ids = uniqueNonEmpty(ids, id)
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	data, _ := json.Marshal(ids)
	res, err := b.searchPatents(ctx, fmt.Sprintf(`{"patent_id":%s}`, data), len(ids))
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// FullText is not offered by PatentsView.
func (b *PatentsView) FullText(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

// LookupDates returns the filing date and earliest priority date of a US
// patent as YYYYMMDD strings. Either may be empty.
func (b *PatentsView) LookupDates(ctx context.Context, number string) (filing, priority string, err error) {
	id := stripKindCode(strings.TrimPrefix(strings.ToUpper(number), "US"))
	q := fmt.Sprintf(`{"patent_id":"%s"}`, escapeJSON(id))
	fields := `["patent_id","application.filing_date","priority_claims.filing_date"]`

	var resp patentsViewDatesResponse
	if err := b.get(ctx, "patent/", q, fields, 1, &resp); err != nil {
		return "", "", err
	}
	if len(resp.Patents) == 0 {
		return "", "", fmt.Errorf("no patent found for ID %s", number)
	}

	p := resp.Patents[0]
	for _, a := range p.Application {
		if d, err := types.NormalizeDate(a.FilingDate); err == nil {
			filing = d
			break
		}
	}
	for _, c := range p.PriorityClaims {
		d, err := types.NormalizeDate(c.FilingDate)
		if err != nil {
			continue
		}
		if priority == "" || d < priority {
			priority = d
		}
	}
	return filing, priority, nil
}

func (b *PatentsView) searchPatents(ctx context.Context, q string, limit int) (Result, error) {
	limit = limitOr(limit, 20)
	if limit > 1000 {
		limit = 1000
	}

	var pvr patentsViewResponse
	if err := b.get(ctx, "patent/", q, patentsViewFields, limit, &pvr); err != nil {
		return Result{}, err
	}

	res := Result{Total: pvr.Total}
	for i, patent := range pvr.Patents {
		// Identifiers carry the US prefix so they match publication numbers
		// from other backends.
		h := Hit{
			UID:               "US" + patent.PatentID,
			PublicationNumber: "US" + patent.PatentID,
			Title:             patent.PatentTitle,
			Abstract:          patent.PatentAbstract,
			Score:             positionScore(i, len(pvr.Patents)),
		}
		for _, c := range patent.CPCCurrent {
			if c.CPCGroupID != "" {
				h.ClassificationCodes = append(h.ClassificationCodes, c.CPCGroupID)
			}
		}
		for _, a := range patent.Assignees {
			if a.Organization != "" {
				h.Assignees = append(h.Assignees, a.Organization)
			}
		}
		if d, err := types.NormalizeDate(patent.PatentDate); err == nil {
			h.PublicationDate = d
		}
		res.Hits = append(res.Hits, h)
	}
	if res.Total < len(res.Hits) {
		res.Total = len(res.Hits)
	}
	return res, nil
}

func (b *PatentsView) get(ctx context.Context, endpoint, q, fields string, perPage int, out any) error {
	params := url.Values{
		"q": {q},
		"f": {fields},
		"o": {fmt.Sprintf(`{"size":%d}`, limitOr(perPage, 20))},
	}
	reqURL := patentsViewAPIBase + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	if b.apiKey != "" {
		req.Header.Set("X-Api-Key", b.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.maxRetries)
	if err != nil {
		return fmt.Errorf("PatentsView API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("PatentsView API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing PatentsView response: %w", err)
	}
	return nil
}

// stripKindCode removes the kind code suffix from a patent number
// (e.g., "7654321B2" -> "7654321", "20230012345A1" -> "20230012345").
func stripKindCode(id string) string {
	if m := patentNumOnlyPattern.FindString(id); m != "" {
		return m
	}
	return id
}

// escapeJSON escapes a string for safe inclusion in a JSON string value.
func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// isoDate converts YYYYMMDD to YYYY-MM-DD; anything else yields "".
func isoDate(d string) string {
	if len(d) != 8 {
		return ""
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}

func uniqueNonEmpty(ids []string, exclude string) []string {
	seen := map[string]bool{exclude: true}
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// PatentsView API JSON structures.
type patentsViewResponse struct {
	Patents []patentsViewPatent `json:"patents"`
	Count   int                 `json:"count"`
	Total   int                 `json:"total_hits"`
}

type patentsViewPatent struct {
	PatentID       string                `json:"patent_id"`
	PatentTitle    string                `json:"patent_title"`
	PatentAbstract string                `json:"patent_abstract"`
	PatentDate     string                `json:"patent_date"`
	CPCCurrent     []patentsViewCPC      `json:"cpc_current"`
	Assignees      []patentsViewAssignee `json:"assignees"`
}

type patentsViewCPC struct {
	CPCGroupID string `json:"cpc_group_id"`
}

type patentsViewAssignee struct {
	Organization string `json:"assignee_organization"`
}

type patentsViewCitationResponse struct {
	Citations []struct {
		PatentID         string `json:"patent_id"`
		CitationPatentID string `json:"citation_patent_id"`
	} `json:"us_patent_citations"`
}

type patentsViewDatesResponse struct {
	Patents []struct {
		Application []struct {
			FilingDate string `json:"filing_date"`
		} `json:"application"`
		PriorityClaims []struct {
			FilingDate string `json:"filing_date"`
		} `json:"priority_claims"`
	} `json:"patents"`
}
