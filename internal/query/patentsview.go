// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"fmt"
	"strings"

	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// PatentsView renders PatentsView JSON query documents. The API has no
// proximity operators, so every block is combined with _and and Relax never
// applies.
type PatentsView struct{}

// Backend returns the PatentsView backend name.
func (PatentsView) Backend() string { return patentdb.PatentsViewName }

// Translate renders item as a PatentsView query.
func (PatentsView) Translate(item types.PlanItem, v Vocabulary) string {
	if item.Semantic {
		return semanticText(item, v)
	}

	var conditions []string
	for _, b := range resolve(item, v) {
		if c := patentsViewCondition(b); c != "" {
			conditions = append(conditions, c)
		}
	}
	switch len(conditions) {
	case 0:
		return ""
	case 1:
		return conditions[0]
	}
	join := "_and"
	if item.Intent == types.IntentTrace {
		join = "_or"
	}
	return fmt.Sprintf(`{"%s":[%s]}`, join, strings.Join(conditions, ","))
}

// InjectDate wraps q with patent_date and application filing date limits.
func (PatentsView) InjectDate(q string, intent types.Intent, date string) string {
	d := isoDate(date)
	if d == "" || q == "" {
		return q
	}
	if intent == types.IntentConflicting {
		return fmt.Sprintf(`{"_and":[%s,{"_gte":{"patent_date":"%s"}},{"_lt":{"application.filing_date":"%s"}}]}`, q, d, d)
	}
	return fmt.Sprintf(`{"_and":[%s,{"_lt":{"patent_date":"%s"}}]}`, q, d)
}

// Relax reports false: there is no proximity to loosen.
func (PatentsView) Relax(q string) (string, bool) { return q, false }

func patentsViewCondition(b block) string {
	var ors []string
	switch b.field {
	case types.ComponentAssignee:
		for _, a := range b.terms {
			ors = append(ors, fmt.Sprintf(`{"_contains":{"assignees.assignee_organization":"%s"}}`, escapeJSON(a)))
		}
	case types.ComponentInventor:
		for _, n := range b.terms {
			ors = append(ors, fmt.Sprintf(`{"_contains":{"inventors.inventor_name_last":"%s"}}`, escapeJSON(lastName(n))))
		}
	case types.ComponentIPC:
		for _, c := range b.terms {
			ors = append(ors, fmt.Sprintf(`{"_begins":{"cpc_current.cpc_group_id":"%s"}}`, escapeJSON(mainGroup(c))))
		}
	default:
		for _, t := range b.terms {
			if cjk.MatchString(t) {
				continue
			}
			t = escapeJSON(strings.ReplaceAll(t, "*", ""))
			ors = append(ors,
				fmt.Sprintf(`{"_text_phrase":{"patent_title":"%s"}}`, t),
				fmt.Sprintf(`{"_text_phrase":{"patent_abstract":"%s"}}`, t))
		}
	}
	switch len(ors) {
	case 0:
		return ""
	case 1:
		return ors[0]
	}
	return fmt.Sprintf(`{"_or":[%s]}`, strings.Join(ors, ","))
}

// mainGroup trims a code to its main group ("B64C 39/024" -> "B64C39/").
func mainGroup(code string) string {
	code = strings.ReplaceAll(code, " ", "")
	if i := strings.Index(code, "/"); i >= 0 {
		return code[:i+1]
	}
	return code
}

func lastName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[len(fields)-1]
}

// escapeJSON escapes a string for safe inclusion in a JSON string value.
func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// isoDate converts YYYYMMDD to YYYY-MM-DD; anything else yields "".
func isoDate(d string) string {
	if len(d) != 8 {
		return ""
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}
