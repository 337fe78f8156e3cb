// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

const (
	minFullTextRunes  = 200
	minParagraphRunes = 25
	scoreParagraphs   = 8
	checkParagraphs   = 3
	maxFeatureDesc    = 200
	paragraphJoin     = "\n...\n"
)

var (
	wordToken  = regexp.MustCompile(`\p{Han}+|[a-zA-Z0-9]+`)
	blankLines = regexp.MustCompile(`\n\s*\n`)
)

var stopwords = map[string]bool{
	"的": true, "了": true, "和": true, "是": true, "就": true, "都": true,
	"而": true, "及": true, "与": true, "着": true, "或": true, "一个": true,
	"没有": true, "在": true, "对": true, "对于": true, "把": true, "被": true,
	"为": true, "为了": true, "因为": true, "所以": true,
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "for": true, "with": true,
}

// tokens splits text into lower-cased words. Runs of Chinese characters
// become overlapping character bigrams, which approximates word
// segmentation well enough for paragraph recall.
func tokens(text string) []string {
	var out []string
	for _, t := range wordToken.FindAllString(text, -1) {
		r := []rune(t)
		if !unicode.Is(unicode.Han, r[0]) {
			out = append(out, strings.ToLower(t))
			continue
		}
		if len(r) == 1 {
			out = append(out, t)
			continue
		}
		for i := 0; i+1 < len(r); i++ {
			out = append(out, string(r[i:i+2]))
		}
	}
	return out
}

// keywordSet returns the tokens of text longer than one character that are
// neither numbers nor stopwords.
func keywordSet(text string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tokens(text) {
		if len([]rune(t)) < 2 || stopwords[t] || isNumber(t) {
			continue
		}
		out[t] = true
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// featureKeywords builds the recall vocabulary of one feature from its name
// and the start of its description.
func featureKeywords(f types.TargetFeature) map[string]bool {
	desc := []rune(f.Description)
	if len(desc) > maxFeatureDesc {
		desc = desc[:maxFeatureDesc]
	}
	return keywordSet(f.Name + " " + string(desc))
}

// relevantParagraphs returns the topN paragraphs of text with the most
// distinct keyword hits, best first, joined by an ellipsis line.
// Paragraphs without a hit are never returned.
func relevantParagraphs(text string, keywords map[string]bool, topN int) string {
	text = blankLines.ReplaceAllString(text, "\n")

	type scored struct {
		hits int
		text string
	}
	var candidates []scored
	for _, p := range strings.Split(text, "\n") {
		p = strings.TrimSpace(p)
		if len([]rune(p)) <= minParagraphRunes {
			continue
		}
		seen := make(map[string]bool)
		for _, t := range tokens(p) {
			if keywords[t] {
				seen[t] = true
			}
		}
		if len(seen) > 0 {
			candidates = append(candidates, scored{hits: len(seen), text: p})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].hits > candidates[j].hits })
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.text
	}
	return strings.Join(parts, paragraphJoin)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
