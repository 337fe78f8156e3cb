// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// maxOtherDocuments caps the background references listed after the
// X or Y citations.
const maxOtherDocuments = 5

// BuildReport renders the final state of a session. It never fails: a
// session with no findings still reports NoRelevantArt.
func BuildReport(st *State, now time.Time) *types.SearchReport {
	r := &types.SearchReport{
		SessionID:    st.SessionID,
		CriticalDate: st.CriticalDate,
		Outcome:      Outcome(st),
		CreatedAt:    now,
		SearchLog:    append([]types.SearchLogEntry(nil), st.Log...),
		Metrics: types.SearchMetrics{
			TotalQueries:    len(st.Log),
			TotalHits:       st.Documents.Len(),
			Rounds:          st.Iteration,
			PhasesCompleted: append([]types.Phase(nil), st.Phases...),
			ValidatedCodes:  append([]string(nil), st.ValidatedCodes...),
		},
	}
	if st.BestCombination != nil {
		c := *st.BestCombination
		r.Combination = &c
	}
	r.RelevantDocuments = relevantDocuments(st)
	r.Narrative = narrative(st, r.Outcome)
	return r
}

// Outcome classifies the session: a novelty-destroying reference beats a
// combination, which beats a closest match, which beats nothing.
func Outcome(st *State) types.Outcome {
	best, ok := st.BestDocument()
	switch {
	case ok && best.NoveltyDestroying:
		return types.OutcomeNoveltyDestroyed
	case st.BestCombination != nil:
		return types.OutcomeCombination
	case ok:
		return types.OutcomeClosestMatch
	default:
		return types.OutcomeNoArt
	}
}

func relevantDocuments(st *State) []types.RelevantDocument {
	var out []types.RelevantDocument
	seen := make(map[string]bool)
	cite := func(doc *types.FoundDocument, tag types.Tag, role string) {
		seen[doc.UID] = true
		out = append(out, types.RelevantDocument{
			Tag:        tag,
			Role:       role,
			UID:        doc.UID,
			Title:      doc.Title,
			Score:      doc.RerankScore,
			Intent:     doc.SourceIntent,
			ClaimChart: doc.Evidence,
		})
	}

	if c := st.BestCombination; c != nil {
		if d1, ok := st.Documents.Get(c.PrimaryUID); ok {
			cite(d1, types.TagY, "D1")
		}
		if d2, ok := st.Documents.Get(c.SecondaryUID); ok {
			cite(d2, types.TagY, "D2")
		}
	}
	if best, ok := st.BestDocument(); ok && !seen[best.UID] {
		switch {
		case best.NoveltyDestroying && best.DateLogic == types.DateConflicting:
			cite(best, types.TagE, "")
		case best.NoveltyDestroying:
			cite(best, types.TagX, "")
		default:
			cite(best, backgroundTag(best), "D1")
		}
	}

	n := 0
	for _, doc := range st.Documents.Ranked() {
		if n == maxOtherDocuments {
			break
		}
		if seen[doc.UID] {
			continue
		}
		cite(doc, backgroundTag(doc), "")
		n++
	}
	return out
}

func backgroundTag(doc *types.FoundDocument) types.Tag {
	if doc.DateLogic == types.DateConflicting {
		return types.TagE
	}
	return types.TagA
}

// narrative drafts the examiner's reasoning for the outcome.
func narrative(st *State, outcome types.Outcome) string {
	var b strings.Builder
	best, _ := st.BestDocument()

	switch outcome {
	case types.OutcomeNoveltyDestroyed:
		fmt.Fprintf(&b, "Novelty: reference D1 (%s) discloses every claimed feature.\n", displayID(best))
		if best.DateLogic == types.DateConflicting {
			b.WriteString("D1 is a conflicting application: filed before and published after the critical date, it is cited for novelty only.\n")
		}
		b.WriteString("Feature mapping:\n")
		if best.Evidence != nil {
			for _, m := range best.Evidence.Matches {
				fmt.Fprintf(&b, "- %s: %s", m.FeatureName, m.Status)
				if m.EvidenceQuote != "" {
					fmt.Fprintf(&b, " (%q)", m.EvidenceQuote)
				}
				b.WriteString("\n")
			}
		}

	case types.OutcomeCombination:
		c := st.BestCombination
		d1, _ := st.Documents.Get(c.PrimaryUID)
		d2, _ := st.Documents.Get(c.SecondaryUID)
		diff, rest := combinationGaps(st, c)
		fmt.Fprintf(&b, "Inventive step: D1 (%s) is the closest prior art.\n", displayID(d1))
		fmt.Fprintf(&b, "Distinguishing features: %s.\n", strings.Join(diff, ", "))
		fmt.Fprintf(&b, "D2 (%s) discloses %q", displayID(d2), c.Feature)
		if d2 != nil && d2.Title != "" {
			fmt.Fprintf(&b, " in %q", d2.Title)
		}
		b.WriteString(".\n")
		if c.Evidence != "" {
			fmt.Fprintf(&b, "Evidence: %s\n", c.Evidence)
		}
		if c.Reasoning != "" {
			fmt.Fprintf(&b, "Motivation to combine: %s\n", c.Reasoning)
		}
		if len(rest) == 0 {
			b.WriteString("The claim therefore lacks an inventive step over D1 in view of D2.\n")
			break
		}
		fmt.Fprintf(&b, "Not disclosed by D1 or D2: %s. ", strings.Join(rest, ", "))
		b.WriteString("The combination supports a lack of inventive step only if these are common general knowledge.\n")

	case types.OutcomeClosestMatch:
		fmt.Fprintf(&b, "Inventive step: D1 (%s) is the closest prior art.\n", displayID(best))
		if len(st.DiffFeatures) > 0 {
			fmt.Fprintf(&b, "Distinguishing features: %s.\n", strings.Join(st.DiffFeatures, ", "))
		}
		b.WriteString("No secondary reference disclosing the distinguishing features was found; ")
		b.WriteString("assess whether they are common general knowledge.\n")

	default:
		b.WriteString("No closely related prior art was found.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// combinationGaps returns the features D1 lacks and, of those, the ones
// D2 does not supply. Without a difference list for D1 only the
// combined feature is known.
func combinationGaps(st *State, c *types.Combination) (diff, rest []string) {
	if c.PrimaryUID == st.BestEvidence {
		diff = append(diff, st.DiffFeatures...)
	}
	if !slices.Contains(diff, c.Feature) {
		diff = append(diff, c.Feature)
	}
	for _, f := range diff {
		if f != c.Feature {
			rest = append(rest, f)
		}
	}
	return diff, rest
}

// displayID prefers the publication number over the backend UID.
func displayID(doc *types.FoundDocument) string {
	if doc == nil {
		return "unknown"
	}
	if doc.PublicationNumber != "" {
		return doc.PublicationNumber
	}
	return doc.UID
}
