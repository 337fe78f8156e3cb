// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"regexp"
	"strings"

	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

var (
	sameSentence  = regexp.MustCompile(`(?i)\)\s*s\s*\(`)
	sameParagraph = regexp.MustCompile(`(?i)\)\s*p\s*\(`)
	cjk           = regexp.MustCompile(`\p{Han}`)
)

// PatSnap renders PatSnap command-line queries. Concept blocks are joined
// with the s (same sentence), p (same paragraph) or AND operators; multi-word
// English terms are bound with w/3.
type PatSnap struct{}

// Backend returns the PatSnap backend name.
func (PatSnap) Backend() string { return patentdb.PatSnapName }

// Translate renders item in PatSnap syntax.
func (PatSnap) Translate(item types.PlanItem, v Vocabulary) string {
	if item.Semantic {
		return semanticText(item, v)
	}

	text, fields := textBlocks(resolve(item, v))

	var body string
	if len(text) > 0 {
		op := " AND "
		switch item.Proximity {
		case types.ProximitySameSentence:
			op = " s "
		case types.ProximitySameParagraph:
			op = " p "
		}
		parts := make([]string, len(text))
		for i, b := range text {
			parts[i] = patSnapBlock(b.terms)
		}
		body = patSnapField(item.Intent) + ":(" + strings.Join(parts, op) + ")"
	}

	var filters []string
	for _, f := range fields {
		filters = append(filters, patSnapFilter(f))
	}

	if item.Intent == types.IntentTrace {
		// Trace looks for the applicant's or inventors' own filings.
		q := strings.Join(filters, " OR ")
		if body != "" && q != "" {
			return "(" + q + ") AND " + body
		}
		return q + body
	}
	if body == "" {
		return ""
	}
	for _, f := range filters {
		body += " AND " + f
	}
	return body
}

// InjectDate appends PBD (publication) and APD (application) date ranges.
func (PatSnap) InjectDate(q string, intent types.Intent, date string) string {
	if date == "" || q == "" {
		return q
	}
	if intent == types.IntentConflicting {
		return "(" + q + ") AND APD:[* TO " + date + "] AND PBD:[" + date + " TO *]"
	}
	return "(" + q + ") AND PBD:[* TO " + date + "]"
}

// Relax rewrites s to p, or p to AND when no s remains.
func (PatSnap) Relax(q string) (string, bool) {
	switch {
	case sameSentence.MatchString(q):
		return sameSentence.ReplaceAllString(q, ") p ("), true
	case sameParagraph.MatchString(q):
		return sameParagraph.ReplaceAllString(q, ") AND ("), true
	}
	return q, false
}

func patSnapField(intent types.Intent) string {
	switch intent {
	case types.IntentFunctional, types.IntentComponent:
		return "DESC"
	}
	return "TAC"
}

func patSnapBlock(terms []string) string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = patSnapTerm(t)
	}
	return "(" + strings.Join(out, " OR ") + ")"
}

// patSnapTerm binds the words of an English phrase with w/3. Chinese terms
// and single words pass through.
func patSnapTerm(t string) string {
	words := strings.Fields(t)
	if len(words) < 2 || cjk.MatchString(t) {
		return t
	}
	return "(" + strings.Join(words, " w/3 ") + ")"
}

func patSnapFilter(b block) string {
	var field string
	switch b.field {
	case types.ComponentAssignee:
		field = "ANS"
	case types.ComponentInventor:
		field = "IN"
	default:
		field = "IPC"
	}
	terms := b.terms
	if b.field == types.ComponentIPC {
		terms = make([]string, len(b.terms))
		for i, c := range b.terms {
			terms[i] = strings.ReplaceAll(c, " ", "")
		}
	}
	return field + ":(" + strings.Join(terms, " OR ") + ")"
}

// semanticText is the natural-language text of a semantic plan item.
func semanticText(item types.PlanItem, v Vocabulary) string {
	if item.Keywords {
		return strings.Join(strings.Fields(strings.Join(item.Components, " ")), " ")
	}
	return naturalText(item, v, 2, false)
}
