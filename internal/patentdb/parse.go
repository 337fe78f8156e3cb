// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patentdb

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// parsePatSnapResult reads total and hits from a /srp/patents response.
func parsePatSnapResult(body []byte) Result {
	data := gjson.GetBytes(body, "data")

	total := data.Get("patent_count.total_count").Int()
	if total == 0 {
		total = data.Get("patent_count.group_count").Int()
	}

	res := Result{Total: int(total)}
	for _, item := range data.Get("patent_data").Array() {
		pn := item.Get("PN").String()
		uid := item.Get("PATENT_ID").String()
		if uid == "" {
			uid = pn
		}
		if uid == "" {
			continue
		}

		h := Hit{
			UID:               uid,
			PublicationNumber: pn,
			Title:             cleanHTML(localized(item.Get("TITLE"))),
			Abstract:          cleanHTML(localized(item.Get("ABST"))),
			Score:             relevancy(item.Get("RELEVANCY")),
		}
		for _, group := range item.Get("ADC").Array() {
			if code := group.Get("code").String(); code != "" {
				h.ClassificationCodes = append(h.ClassificationCodes, code)
			}
		}
		for _, a := range item.Get("ANC.OFFICIAL").Array() {
			h.Assignees = append(h.Assignees, a.String())
		}
		if d, err := types.NormalizeDate(item.Get("PBD").String()); err == nil {
			h.PublicationDate = d
		}
		res.Hits = append(res.Hits, h)
	}
	return res
}

// localized returns a plain string field, or the CN then EN variant of a
// language-keyed object.
func localized(r gjson.Result) string {
	if !r.IsObject() {
		return r.String()
	}
	for _, lang := range []string{"CN", "EN"} {
		if v := r.Get(lang); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	var first string
	r.ForEach(func(_, v gjson.Result) bool {
		first = v.String()
		return false
	})
	return first
}

// relevancy parses "88%" or 88 into 88.0.
func relevancy(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Float()
	case gjson.String:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.String()), "%"))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// blockTags start a new line when stripped.
var blockTags = map[string]bool{"p": true, "div": true, "br": true, "li": true, "tr": true}

// cleanHTML strips highlight and layout tags and unescapes entities.
func cleanHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			out := strings.ReplaceAll(b.String(), "\u00a0", " ")
			return strings.TrimSpace(blankLines.ReplaceAllString(out, "\n\n"))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				b.WriteByte('\n')
			}
		}
	}
}
