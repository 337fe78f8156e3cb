// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package execute

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// SchemaHarvest names the keyword harvesting call.
const SchemaHarvest = "keyword_harvest"

const (
	maxCorpusRunes  = 3000
	maxHintTerms    = 5
	corpusSeparator = "\n---\n"
)

var harvestPromptTmpl = template.Must(template.New("harvest").Funcs(template.FuncMap{
	"join": func(s []string) string { return strings.Join(s, ", ") },
}).Parse(`Extract NEW synonyms for the concepts below from the patent text provided.

Concepts (ID: existing keywords):
{{range .Concepts}}- {{.ID}}: local [{{join .Local}}] english [{{join .English}}]
{{end}}
Patent text:
{{.Corpus}}

Return only terms that occur in the text and are not in the existing lists.
Use new_local_terms for terms in the filing language and new_english_terms for English terms.`))

type harvestConcept struct {
	ID      string
	Local   []string
	English []string
}

type harvestData struct {
	Concepts []harvestConcept
	Corpus   string
}

// harvestReply is the model's list of new terms per concept.
type harvestReply struct {
	Concepts []harvestTerms `json:"concepts"`
}

type harvestTerms struct {
	ConceptID       string   `json:"concept_id"`
	NewLocalTerms   []string `json:"new_local_terms"`
	NewEnglishTerms []string `json:"new_english_terms"`
}

// HarvestNewKeywords mines the top cfg.HarvestDocuments documents for
// synonyms missing from the matrix and returns a new matrix with them
// appended. Existing terms are never removed. Any failure returns an
// unchanged copy of matrix.
func (e *Engine) HarvestNewKeywords(ctx context.Context, docs []*types.FoundDocument, matrix types.ConceptMatrix) types.ConceptMatrix {
	out := matrix.Clone()
	if e.llm == nil || len(docs) == 0 || len(matrix) == 0 {
		return out
	}
	if len(docs) > e.cfg.HarvestDocuments {
		docs = docs[:e.cfg.HarvestDocuments]
	}

	var buf bytes.Buffer
	if err := harvestPromptTmpl.Execute(&buf, harvestData{
		Concepts: hintConcepts(matrix),
		Corpus:   corpus(docs),
	}); err != nil {
		e.logger.ErrorContext(ctx, "harvest prompt", "err", err)
		return out
	}

	reply, err := llm.Generate[harvestReply](ctx, e.llm, llm.Request{
		UserPrompt:  buf.String(),
		SchemaName:  SchemaHarvest,
		Temperature: llm.Temp(0),
		Fast:        true,
	}, e.attempts)
	if err != nil {
		e.logger.WarnContext(ctx, "keyword harvesting failed", "err", err)
		return out
	}

	added := 0
	for _, c := range reply.Concepts {
		for i := range out {
			if out[i].ID != c.ConceptID {
				continue
			}
			before := len(out[i].LocalTerms) + len(out[i].EnglishTerms)
			out[i].LocalTerms = types.AppendTerms(out[i].LocalTerms, c.NewLocalTerms)
			out[i].EnglishTerms = types.AppendTerms(out[i].EnglishTerms, c.NewEnglishTerms)
			added += len(out[i].LocalTerms) + len(out[i].EnglishTerms) - before
		}
	}
	if added > 0 {
		e.logger.InfoContext(ctx, "harvested keywords", "added", added)
	}
	return out
}

func hintConcepts(m types.ConceptMatrix) []harvestConcept {
	out := make([]harvestConcept, len(m))
	for i, e := range m {
		out[i] = harvestConcept{ID: e.ID, Local: head(e.LocalTerms), English: head(e.EnglishTerms)}
	}
	return out
}

func head(terms []string) []string {
	if len(terms) > maxHintTerms {
		return terms[:maxHintTerms]
	}
	return terms
}

// corpus joins title and abstract of each document, truncated to
// maxCorpusRunes.
func corpus(docs []*types.FoundDocument) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = "Title: " + d.Title + "\nAbstract: " + d.Abstract
	}
	text := []rune(strings.Join(parts, corpusSeparator))
	if len(text) > maxCorpusRunes {
		text = text[:maxCorpusRunes]
	}
	return string(text)
}
