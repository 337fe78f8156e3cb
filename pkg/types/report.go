// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Feature is one technical feature of the target patent as ranked by the
// analysis report.
type Feature struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Rationale   string `json:"rationale,omitempty" yaml:"rationale,omitempty"`

	// Score is the feature's contribution score (0-5). Zero means unscored;
	// the score is then derived from the effects the feature contributes to.
	Score int `json:"score" yaml:"score"`
}

// Effect is one technical effect and the features that produce it.
type Effect struct {
	Text     string   `json:"text" yaml:"text"`
	Score    int      `json:"score" yaml:"score"`
	Features []string `json:"contributing_features" yaml:"contributing_features"`
}

// TechnicalReport is the structured analysis of the patent under search.
type TechnicalReport struct {
	Title          string `json:"title" yaml:"title"`
	SubjectMatter  string `json:"subject_matter" yaml:"subject_matter"`
	TechnicalField string `json:"technical_field" yaml:"technical_field"`

	// TechnicalMeans is the narrative used as the semantic-search and rerank anchor.
	TechnicalMeans string `json:"technical_means" yaml:"technical_means"`

	Features []Feature `json:"features" yaml:"features"`
	Effects  []Effect  `json:"effects" yaml:"effects"`

	ClassificationCodes []string `json:"classification_codes,omitempty" yaml:"classification_codes,omitempty"`
	Applicants          []string `json:"applicants,omitempty" yaml:"applicants,omitempty"`
	Inventors           []string `json:"inventors,omitempty" yaml:"inventors,omitempty"`
}

// RankedFeatures returns named features with their effective score, highest
// first. Ties keep report order.
func (r TechnicalReport) RankedFeatures() []Feature {
	effectScore := make(map[string]int)
	for _, e := range r.Effects {
		for _, name := range e.Features {
			key := strings.TrimSpace(name)
			if e.Score > effectScore[key] {
				effectScore[key] = e.Score
			}
		}
	}

	var out []Feature
	for _, f := range r.Features {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			continue
		}
		if f.Score == 0 {
			f.Score = effectScore[f.Name]
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// TargetFeature is a feature a reference must disclose to destroy novelty.
type TargetFeature struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Score       int    `json:"score" yaml:"score"`
}

// minTargetScore is the lowest feature score that counts as a claimed feature.
const minTargetScore = 3

// TargetFeatures returns the features scored at least 3, numbered F1..Fn in
// rank order. When no feature reaches the threshold the top three ranked
// features are used instead.
func (r TechnicalReport) TargetFeatures() []TargetFeature {
	ranked := r.RankedFeatures()
	var picked []Feature
	for _, f := range ranked {
		if f.Score >= minTargetScore {
			picked = append(picked, f)
		}
	}
	if len(picked) == 0 {
		picked = ranked
		if len(picked) > 3 {
			picked = picked[:3]
		}
	}

	out := make([]TargetFeature, len(picked))
	for i, f := range picked {
		out[i] = TargetFeature{
			ID:          fmt.Sprintf("F%d", i+1),
			Name:        f.Name,
			Description: f.Description,
			Score:       f.Score,
		}
	}
	return out
}

// Case is the input to one search session: the patent's bibliographic dates
// and its technical report.
type Case struct {
	// PublicationNumber identifies the patent under search, if published.
	PublicationNumber string `json:"publication_number,omitempty" yaml:"publication_number,omitempty"`

	PriorityDate string `json:"priority_date,omitempty" yaml:"priority_date,omitempty"`
	FilingDate   string `json:"filing_date,omitempty" yaml:"filing_date,omitempty"`

	Report TechnicalReport `json:"report" yaml:"report"`
}

// CriticalDate returns the priority date, or the filing date when there is
// none, as an 8-digit YYYYMMDD string. It returns "" when neither is set.
func (c Case) CriticalDate() (string, error) {
	raw := c.PriorityDate
	if strings.TrimSpace(raw) == "" {
		raw = c.FilingDate
	}
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return NormalizeDate(raw)
}

// NormalizeDate converts "2020-01-15", "2020.01.15" or "20200115" to "20200115".
func NormalizeDate(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) != 8 {
		return "", fmt.Errorf("date %q is not in YYYYMMDD form", s)
	}
	return d, nil
}
