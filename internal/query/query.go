// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query translates vendor-neutral plan items into backend query
// strings and applies the date and relaxation rewrites the execution engine
// needs. Everything here is a pure function of its inputs.
package query

import (
	"fmt"
	"strings"

	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Vocabulary is what a translator may draw terms from.
type Vocabulary struct {
	Matrix types.ConceptMatrix

	// Codes are the active classification codes: validated codes when the
	// session has them, otherwise the target's own codes.
	Codes []string

	Applicants []string
	Inventors  []string
}

// Dialect is one backend's query language.
type Dialect interface {
	// Backend returns the patentdb backend name the dialect targets.
	Backend() string

	// Translate renders item as a query. It returns "" when the item
	// references nothing the vocabulary can supply.
	Translate(item types.PlanItem, v Vocabulary) string

	// InjectDate restricts q to the date window the intent requires. An
	// empty date leaves q unchanged.
	InjectDate(q string, intent types.Intent, date string) string

	// Relax loosens the tightest block proximity operator in q by one
	// level. It reports false when nothing can be loosened.
	Relax(q string) (string, bool)
}

// For returns the dialect for a backend name.
func For(backend string) (Dialect, error) {
	switch backend {
	case patentdb.PatSnapName:
		return PatSnap{}, nil
	case patentdb.PatentsViewName:
		return PatentsView{}, nil
	case patentdb.ScholarName:
		return Scholar{}, nil
	}
	return nil, fmt.Errorf("no query dialect for backend %q", backend)
}

// block is one group of alternative terms, or a reserved field filter.
type block struct {
	field string // ComponentAssignee, ComponentInventor, ComponentIPC or ""
	terms []string
}

// resolve maps plan components to blocks. Concept IDs expand to the
// concept's terms; unknown IDs are dropped.
func resolve(item types.PlanItem, v Vocabulary) []block {
	var out []block
	for _, c := range item.Components {
		c = strings.TrimSpace(c)
		switch {
		case c == "":
		case c == types.ComponentAssignee:
			if len(v.Applicants) > 0 {
				out = append(out, block{field: c, terms: v.Applicants})
			}
		case c == types.ComponentInventor:
			if len(v.Inventors) > 0 {
				out = append(out, block{field: c, terms: v.Inventors})
			}
		case c == types.ComponentIPC:
			if len(v.Codes) > 0 {
				out = append(out, block{field: c, terms: v.Codes})
			}
		case item.Keywords:
			if terms := splitAlternatives(c); len(terms) > 0 {
				out = append(out, block{terms: terms})
			}
		default:
			e, ok := v.Matrix.Find(c)
			if !ok {
				continue
			}
			if terms := cleanTerms(e.Terms()); len(terms) > 0 {
				out = append(out, block{terms: terms})
			}
		}
	}
	return out
}

// splitAlternatives splits a keyword component of the form "a|b|c".
func splitAlternatives(s string) []string {
	return cleanTerms(strings.Split(s, "|"))
}

func cleanTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		t = strings.Join(strings.Fields(t), " ")
		t = strings.Trim(t, `"`)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

// textBlocks returns the blocks that are not reserved field filters.
func textBlocks(bs []block) (text, fields []block) {
	for _, b := range bs {
		if b.field == "" {
			text = append(text, b)
		} else {
			fields = append(fields, b)
		}
	}
	return text, fields
}

// naturalText joins the leading terms of each block into a sentence for
// semantic search. englishOnly skips Chinese terms.
func naturalText(item types.PlanItem, v Vocabulary, perBlock int, englishOnly bool) string {
	var words []string
	for _, b := range resolve(item, v) {
		if b.field != "" {
			continue
		}
		n := 0
		for _, t := range b.terms {
			if n == perBlock {
				break
			}
			if englishOnly && cjk.MatchString(t) {
				continue
			}
			words = append(words, strings.ReplaceAll(t, "*", ""))
			n++
		}
	}
	return strings.Join(words, " ")
}
