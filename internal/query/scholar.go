// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Scholar renders plain keyword text for literature search. Dates travel in
// the request rather than the query.
type Scholar struct{}

// Backend returns the Semantic Scholar backend name.
func (Scholar) Backend() string { return patentdb.ScholarName }

// Translate joins the first three terms of each concept block.
func (Scholar) Translate(item types.PlanItem, v Vocabulary) string {
	if item.Semantic && item.Keywords {
		return semanticText(item, v)
	}
	return naturalText(item, v, 3, true)
}

// InjectDate returns q unchanged.
func (Scholar) InjectDate(q string, _ types.Intent, _ string) string { return q }

// Relax reports false.
func (Scholar) Relax(q string) (string, bool) { return q, false }
