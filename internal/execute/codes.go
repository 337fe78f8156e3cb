// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package execute

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// mainGroupCode captures subclass plus main group, e.g. "H04W 72" from "H04W 72/04".
var mainGroupCode = regexp.MustCompile(`^([A-H]\d{2}[A-Z]\s?\d+)`)

const minCodeCount = 2

// AnalyzeClassificationCodes tallies main-group codes across docs and
// returns up to topN of the most frequent that appear at least twice,
// e.g. "H04W72". Ties keep first-seen order.
func AnalyzeClassificationCodes(docs []*types.FoundDocument, topN int) []string {
	counts := make(map[string]int)
	var order []string
	for _, d := range docs {
		for _, code := range d.ClassificationCodes {
			m := mainGroupCode.FindStringSubmatch(strings.TrimSpace(strings.ToUpper(code)))
			if m == nil {
				continue
			}
			group := strings.ReplaceAll(m[1], " ", "")
			if counts[group] == 0 {
				order = append(order, group)
			}
			counts[group]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}
	var out []string
	for _, g := range order {
		if counts[g] >= minCodeCount {
			out = append(out, g)
		}
	}
	return out
}
