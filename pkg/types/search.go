// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the priorart-engine
// search agent: the concept matrix, planned search strategies, candidate
// references with their claim charts, and the final search report.
package types

import (
	"sort"
	"strings"
)

// Role classifies a concept matrix entry.
type Role string

const (
	RoleSubject    Role = "Subject"
	RoleKeyFeature Role = "KeyFeature"
	RoleFunctional Role = "Functional"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSubject, RoleKeyFeature, RoleFunctional:
		return true
	}
	return false
}

// ConceptEntry is one technical concept detected in the target patent.
// Term lists only grow over the life of a session.
type ConceptEntry struct {
	// ID is the stable key planners use to reference the concept.
	ID string `json:"concept_id" yaml:"concept_id"`

	// Role places the concept in block A (Subject), B (KeyFeature) or C (Functional).
	Role Role `json:"role" yaml:"role"`

	// FeatureType is a free-form tag such as "structure", "method" or "parameter".
	FeatureType string `json:"feature_type,omitempty" yaml:"feature_type,omitempty"`

	// LocalTerms are synonyms in the application's filing language.
	LocalTerms []string `json:"local_terms" yaml:"local_terms"`

	// EnglishTerms are English synonyms and truncation-wildcard forms.
	EnglishTerms []string `json:"english_terms" yaml:"english_terms"`

	// ClassificationCodes are IPC/CPC hints for the concept.
	ClassificationCodes []string `json:"classification_codes,omitempty" yaml:"classification_codes,omitempty"`
}

// Terms returns the local terms followed by the English terms.
func (e ConceptEntry) Terms() []string {
	out := make([]string, 0, len(e.LocalTerms)+len(e.EnglishTerms))
	out = append(out, e.LocalTerms...)
	return append(out, e.EnglishTerms...)
}

// ConceptMatrix is the ordered list of concepts that drives query building.
type ConceptMatrix []ConceptEntry

// Clone returns a deep copy so callers can produce a replacement matrix
// without touching the session's stored value.
func (m ConceptMatrix) Clone() ConceptMatrix {
	if m == nil {
		return nil
	}
	out := make(ConceptMatrix, len(m))
	for i, e := range m {
		out[i] = e
		out[i].LocalTerms = append([]string(nil), e.LocalTerms...)
		out[i].EnglishTerms = append([]string(nil), e.EnglishTerms...)
		out[i].ClassificationCodes = append([]string(nil), e.ClassificationCodes...)
	}
	return out
}

// Find returns the entry with the given ID.
func (m ConceptMatrix) Find(id string) (ConceptEntry, bool) {
	for _, e := range m {
		if e.ID == id {
			return e, true
		}
	}
	return ConceptEntry{}, false
}

// ByRole returns the entries with role r in matrix order.
func (m ConceptMatrix) ByRole(r Role) []ConceptEntry {
	var out []ConceptEntry
	for _, e := range m {
		if e.Role == r {
			out = append(out, e)
		}
	}
	return out
}

// HasKeyFeature reports whether at least one KeyFeature entry exists.
func (m ConceptMatrix) HasKeyFeature() bool {
	return len(m.ByRole(RoleKeyFeature)) > 0
}

// Intent is the search purpose a strategy serves.
type Intent string

const (
	IntentTrace       Intent = "Trace"
	IntentCompetitor  Intent = "Competitor"
	IntentPrecision   Intent = "Precision"
	IntentSynergy     Intent = "Synergy"
	IntentFunctional  Intent = "Functional"
	IntentComponent   Intent = "Component"
	IntentBroad       Intent = "Broad"
	IntentConflicting Intent = "ConflictingPriorArt"
	IntentFundamental Intent = "Fundamental"
	IntentLineage     Intent = "Lineage"
)

// Valid reports whether i is a plannable intent. Lineage is assigned by
// citation expansion and never planned.
func (i Intent) Valid() bool {
	switch i {
	case IntentTrace, IntentCompetitor, IntentPrecision, IntentSynergy,
		IntentFunctional, IntentComponent, IntentBroad, IntentConflicting,
		IntentFundamental:
		return true
	}
	return false
}

// Proximity is the tightest operator a plan item asks the translator to use
// between concept blocks.
type Proximity string

const (
	ProximityNone            Proximity = "None"
	ProximitySameSentence    Proximity = "SameSentence"
	ProximitySameParagraph   Proximity = "SameParagraph"
	ProximityBooleanAND      Proximity = "BooleanAND"
	ProximityNaturalLanguage Proximity = "NaturalLanguage"
)

// Component references that are not concept IDs.
const (
	ComponentAssignee = "Assignee"
	ComponentInventor = "Inventor"
	ComponentIPC      = "IPC"
)

// PlanItem is the vendor-neutral shape of one strategy before translation.
type PlanItem struct {
	Name      string    `json:"name" yaml:"name"`
	Intent    Intent    `json:"intent" yaml:"intent"`
	Proximity Proximity `json:"proximity" yaml:"proximity"`

	// Components are concept IDs, reserved names (Assignee, Inventor, IPC),
	// or free keywords when Keywords is set.
	Components []string `json:"components" yaml:"components"`

	// Keywords marks Components as literal search terms rather than concept IDs.
	Keywords bool `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Semantic requests a natural-language search with Components as text.
	Semantic bool `json:"semantic,omitempty" yaml:"semantic,omitempty"`
}

// StrategyStatus records how a strategy's execution ended.
type StrategyStatus string

const (
	StatusPending         StrategyStatus = "Pending"
	StatusExecutedSuccess StrategyStatus = "ExecutedSuccess"
	StatusExecutedRelaxed StrategyStatus = "ExecutedRelaxed"
	StatusSkippedNoise    StrategyStatus = "SkippedNoise"
	StatusExecutedEmpty   StrategyStatus = "ExecutedEmpty"
	StatusError           StrategyStatus = "Error"
)

// Strategy is one planned query. It is created fresh for each round.
type Strategy struct {
	Name    string `json:"name" yaml:"name"`
	Intent  Intent `json:"intent" yaml:"intent"`
	Backend string `json:"backend" yaml:"backend"`

	// Query is the translated query before date injection. Dedup across
	// rounds compares this string.
	Query string `json:"query" yaml:"query"`

	// Semantic routes the query to the backend's natural-language search.
	Semantic bool `json:"semantic,omitempty" yaml:"semantic,omitempty"`

	Status StrategyStatus `json:"status" yaml:"status"`

	// RelaxedQuery is set when a zero-hit query was retried one level looser.
	RelaxedQuery string `json:"relaxed_query,omitempty" yaml:"relaxed_query,omitempty"`

	// Hits is the backend's total hit count for the final attempt.
	Hits int `json:"hits" yaml:"hits"`

	// Err holds the error text for StatusError.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Key identifies the search a strategy runs: the same query text on two
// backends is two different searches.
func (s Strategy) Key() string {
	return s.Backend + ":" + s.Query
}

// NormalizeCodes upper-cases, trims, and deduplicates classification codes,
// preserving first-seen order.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		c = strings.ToUpper(strings.Join(strings.Fields(c), ""))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// AppendTerms appends the terms of add not already in list, comparing
// case-insensitively. The result never loses an element of list.
func AppendTerms(list, add []string) []string {
	seen := make(map[string]bool, len(list)+len(add))
	for _, t := range list {
		seen[strings.ToLower(t)] = true
	}
	for _, t := range add {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		list = append(list, t)
	}
	return list
}

// SortedKeys returns the keys of a string set in lexical order.
func SortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
