// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Schema names identify each LLM call in logs, metrics and test fakes.
const (
	SchemaMatrix = "concept_matrix"
	SchemaPlan   = "search_plan"
	SchemaDiff   = "diff_plan"
)

const systemPrompt = `You are a senior patent examiner planning a prior-art search. ` +
	`You reason about claimed features, their technical effects and the ` +
	`vocabulary other applicants would use for the same idea. Reply with JSON only.`

var matrixPromptTmpl = template.Must(template.New("matrix").Funcs(funcs).Parse(`Expand the search vocabulary for each concept of the patent below.

For every concept_id listed, return:
- local_terms: synonyms in the filing language (Chinese when the subject is Chinese), no truncation marks
- english_terms: English synonyms; use a trailing * for truncation on words longer than three letters (e.g. "detect*")
- classification_codes: IPC main groups that would classify the concept (e.g. "B64C 39/02")
- feature_type: one of "structure", "method", "material", "parameter", "effect"

Do not invent new concept IDs. Do not repeat the terms already listed.

Title: {{.Report.Title}}
Subject matter: {{.Report.SubjectMatter}}
Technical field: {{.Report.TechnicalField}}
Technical means: {{.Report.TechnicalMeans}}

Concepts:
{{range .Matrix}}- {{.ID}} [{{.Role}}]: {{join .Terms}}
{{end}}`))

var planPromptTmpl = template.Must(template.New("plan").Funcs(funcs).Parse(`Design a vendor-neutral search plan for the patent below.

Each strategy has:
- name: short label
- intent: one of Trace, Competitor, Precision, Synergy, Functional, Component, Broad, ConflictingPriorArt, Fundamental
- proximity: SameSentence for structural binding of subject and key feature, SameParagraph for function or effect binding, BooleanAND otherwise
- components: concept IDs from the matrix, or the reserved names Assignee, Inventor, IPC

Intent guidance:
- Precision: subject (A) with key features (B) in the same sentence, to find one document disclosing everything
- Synergy: two key features together
- ConflictingPriorArt: the pivotal key feature only, tight wording, no dates
- Competitor: Assignee with key features
- Functional / Component: a key feature with a functional concept (C) in the same paragraph
- Broad: key features with IPC

Prefer intents that have not been executed yet.

Subject matter: {{.Report.SubjectMatter}}
Technical field: {{.Report.TechnicalField}}
Applicants: {{join .Report.Applicants}}
Classification codes: {{join .Codes}}
Executed intents: {{join .Executed}}

Concept matrix:
{{range .Matrix}}- {{.ID}} [{{.Role}}]: {{join .Terms}}
{{end}}`))

var diffPromptTmpl = template.Must(template.New("diff").Funcs(funcs).Parse(`A reference has been found that discloses most of the patent below but not the distinguishing features listed. Plan searches for a second reference that supplies each missing feature in any technical field.

Each strategy has:
- name: short label naming the missing feature
- intent: Functional or Component
- proximity: SameParagraph or BooleanAND
- keyword_groups: two or three groups of alternative search terms; write alternatives within a group separated by "|" (e.g. "hinge*|pivot*")

Subject matter: {{.Report.SubjectMatter}}
Missing features:
{{range .Diff}}- {{.}}
{{end}}
Concept matrix:
{{range .Matrix}}- {{.ID}} [{{.Role}}]: {{join .Terms}}
{{end}}`))

var funcs = template.FuncMap{"join": func(s []string) string { return strings.Join(s, ", ") }}

type promptData struct {
	Report   types.TechnicalReport
	Matrix   types.ConceptMatrix
	Codes    []string
	Executed []string
	Diff     []string
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// matrixReply is the concept expansion returned by the model.
type matrixReply struct {
	Concepts []conceptTerms `json:"concepts"`
}

type conceptTerms struct {
	ConceptID           string   `json:"concept_id"`
	FeatureType         string   `json:"feature_type"`
	LocalTerms          []string `json:"local_terms"`
	EnglishTerms        []string `json:"english_terms"`
	ClassificationCodes []string `json:"classification_codes"`
}

func (r *matrixReply) Validate() error {
	if len(r.Concepts) == 0 {
		return fmt.Errorf("no concepts")
	}
	return nil
}

// planReply is a universal search plan.
type planReply struct {
	Strategies []planEntry `json:"strategies"`
}

type planEntry struct {
	Name       string   `json:"name"`
	Intent     string   `json:"intent" jsonschema:"enum=Trace,enum=Competitor,enum=Precision,enum=Synergy,enum=Functional,enum=Component,enum=Broad,enum=ConflictingPriorArt,enum=Fundamental"`
	Proximity  string   `json:"proximity" jsonschema:"enum=SameSentence,enum=SameParagraph,enum=BooleanAND"`
	Components []string `json:"components"`
}

func (r *planReply) Validate() error {
	if len(r.Strategies) == 0 {
		return fmt.Errorf("empty plan")
	}
	return nil
}

// diffReply is a plan aimed at the missing features.
type diffReply struct {
	Strategies []diffEntry `json:"strategies"`
}

type diffEntry struct {
	Name          string   `json:"name"`
	Intent        string   `json:"intent" jsonschema:"enum=Functional,enum=Component"`
	Proximity     string   `json:"proximity" jsonschema:"enum=SameParagraph,enum=BooleanAND"`
	KeywordGroups []string `json:"keyword_groups"`
}

func (r *diffReply) Validate() error {
	if len(r.Strategies) == 0 {
		return fmt.Errorf("empty plan")
	}
	return nil
}
