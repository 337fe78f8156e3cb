// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DateLogic classifies a reference by its dates relative to the critical date.
type DateLogic string

const (
	// DatePriorArt means published before the critical date.
	DatePriorArt DateLogic = "PriorArt"

	// DateConflicting means filed before and published on or after the
	// critical date. Such references count for novelty only.
	DateConflicting DateLogic = "ConflictingApplication"
)

// DateLogicFor returns the date class implied by the intent that found a document.
func DateLogicFor(intent Intent) DateLogic {
	if intent == IntentConflicting {
		return DateConflicting
	}
	return DatePriorArt
}

// FoundDocument is one candidate prior-art reference. It is created on the
// first sighting of its UID and never re-tagged afterwards.
type FoundDocument struct {
	// UID is the backend's document identifier and the dedup key.
	UID string `json:"uid" yaml:"uid"`

	// PublicationNumber is the human-facing number (e.g. "CN112345678A").
	PublicationNumber string `json:"publication_number,omitempty" yaml:"publication_number,omitempty"`

	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`

	ClassificationCodes []string `json:"classification_codes,omitempty" yaml:"classification_codes,omitempty"`
	Assignees           []string `json:"assignees,omitempty" yaml:"assignees,omitempty"`

	// PublicationDate is the 8-digit publication date when the backend reports one.
	PublicationDate string `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	// Backend names the search system that returned the document.
	Backend string `json:"backend" yaml:"backend"`

	// RawScore is the backend's native relevance score (0-100 where known).
	RawScore float64 `json:"raw_score" yaml:"raw_score"`

	// RerankScore orders review priority. It never causes a document to be dropped.
	RerankScore float64 `json:"rerank_score" yaml:"rerank_score"`

	NoveltyDestroying bool `json:"novelty_destroying" yaml:"novelty_destroying"`

	SourceStrategy string    `json:"source_strategy" yaml:"source_strategy"`
	SourceIntent   Intent    `json:"source_intent" yaml:"source_intent"`
	DateLogic      DateLogic `json:"date_logic" yaml:"date_logic"`

	// Evidence is the claim chart, set once the document has been reviewed.
	Evidence *ClaimChart `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// MatchStatus is the disclosure verdict for one feature.
type MatchStatus string

const (
	Disclosed    MatchStatus = "Disclosed"
	NotDisclosed MatchStatus = "NotDisclosed"
)

// FeatureMatch compares one target feature with a reference.
type FeatureMatch struct {
	FeatureID     string      `json:"feature_id" yaml:"feature_id"`
	FeatureName   string      `json:"feature_name" yaml:"feature_name"`
	Status        MatchStatus `json:"status" yaml:"status"`
	EvidenceQuote string      `json:"evidence_quote,omitempty" yaml:"evidence_quote,omitempty"`
	Reasoning     string      `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// ClaimChart is the feature-by-feature evaluation of one reference.
type ClaimChart struct {
	Matches []FeatureMatch `json:"feature_matches" yaml:"feature_matches"`

	// MatchScore is an overall similarity estimate between 0 and 100.
	MatchScore int `json:"match_score" yaml:"match_score"`
}

// DisclosedCount returns the number of Disclosed features.
func (c ClaimChart) DisclosedCount() int {
	n := 0
	for _, m := range c.Matches {
		if m.Status == Disclosed {
			n++
		}
	}
	return n
}

// Missing returns the names of features that are not disclosed, in chart order.
func (c ClaimChart) Missing() []string {
	var out []string
	for _, m := range c.Matches {
		if m.Status != Disclosed {
			out = append(out, m.FeatureName)
		}
	}
	return out
}

// FullMatch reports whether the chart is non-empty and every feature is Disclosed.
func (c ClaimChart) FullMatch() bool {
	return len(c.Matches) > 0 && c.DisclosedCount() == len(c.Matches)
}

// Combination is an inventive-step pairing: a primary reference plus a
// secondary reference that supplies one missing feature.
type Combination struct {
	PrimaryUID   string `json:"primary_uid" yaml:"primary_uid"`
	SecondaryUID string `json:"secondary_uid" yaml:"secondary_uid"`
	Feature      string `json:"feature" yaml:"feature"`
	Evidence     string `json:"evidence" yaml:"evidence"`
	Reasoning    string `json:"reasoning" yaml:"reasoning"`
}

// SecondaryCheck is the verdict on whether one reference discloses one feature.
type SecondaryCheck struct {
	Disclosed bool   `json:"is_disclosed" yaml:"is_disclosed"`
	Evidence  string `json:"evidence" yaml:"evidence"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}
