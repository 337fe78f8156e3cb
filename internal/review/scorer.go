// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/internal/patentdb"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Schema names of the scoring calls.
const (
	SchemaClaimChart = "claim_chart"
	SchemaSecondary  = "secondary_check"
)

const (
	maxChartContext = 6000
	maxCheckContext = 2500
)

const examinerPrompt = `You are a senior patent examiner comparing a reference document with the ` +
	`claimed features of a patent application. Judge disclosure strictly: a feature is ` +
	`disclosed only when the reference describes it explicitly or unambiguously. Reply with JSON only.`

var chartPromptTmpl = template.Must(template.New("chart").Parse(`Build a claim chart.

Target features:
{{range .Features}}- [{{.ID}}] {{.Name}} (score {{.Score}}){{if .Description}}: {{.Description}}{{end}}
{{end}}
Reference
Title: {{.Title}}
{{.Context}}

For every target feature return feature_id, feature_name, status ("disclosed" or "not_disclosed"), evidence (a verbatim quote from the reference, empty when not disclosed) and reasoning (one sentence). Also return match_score, an integer 0-100 for overall similarity.`))

var checkPromptTmpl = template.Must(template.New("check").Parse(`Determine whether the reference discloses this specific feature: "{{.Feature}}".

Reference
Title: {{.Title}}
{{.Context}}

Return is_disclosed, evidence (a verbatim quote) and reasoning.`))

// chartReply is the model's claim chart before normalization.
type chartReply struct {
	ClaimChart []chartRow `json:"claim_chart"`
	MatchScore int        `json:"match_score"`
}

type chartRow struct {
	FeatureID   string `json:"feature_id"`
	FeatureName string `json:"feature_name"`
	Status      string `json:"status" jsonschema:"enum=disclosed,enum=not_disclosed"`
	Evidence    string `json:"evidence"`
	Reasoning   string `json:"reasoning"`
}

func (r *chartReply) Validate() error {
	if len(r.ClaimChart) == 0 {
		return fmt.Errorf("empty claim chart")
	}
	return nil
}

// checkReply is the single-feature verdict.
type checkReply struct {
	IsDisclosed bool   `json:"is_disclosed"`
	Evidence    string `json:"evidence"`
	Reasoning   string `json:"reasoning"`
}

// EvidenceScorer compares reference documents with the target features.
type EvidenceScorer struct {
	client   llm.Client
	registry *patentdb.Registry
	features []types.TargetFeature
	attempts int

	keywords    map[string]map[string]bool
	allKeywords map[string]bool
	logger      *slog.Logger
}

// NewEvidenceScorer precomputes the recall vocabulary of each feature.
// registry may be nil, in which case scoring uses abstracts only.
func NewEvidenceScorer(client llm.Client, registry *patentdb.Registry, features []types.TargetFeature, attempts int) *EvidenceScorer {
	s := &EvidenceScorer{
		client:      client,
		registry:    registry,
		features:    features,
		attempts:    attempts,
		keywords:    make(map[string]map[string]bool, len(features)),
		allKeywords: make(map[string]bool),
		logger:      slog.Default().With("component", "scorer"),
	}
	for _, f := range features {
		kw := featureKeywords(f)
		s.keywords[f.Name] = kw
		for k := range kw {
			s.allKeywords[k] = true
		}
	}
	return s
}

// Features returns the target features the scorer charts against.
func (s *EvidenceScorer) Features() []types.TargetFeature {
	return s.features
}

// Score charts doc against every target feature. The chart always lists
// the target features in order; features the model skipped are NotDisclosed.
func (s *EvidenceScorer) Score(ctx context.Context, doc *types.FoundDocument) (types.ClaimChart, error) {
	text := s.smartContext(ctx, doc)

	var buf bytes.Buffer
	err := chartPromptTmpl.Execute(&buf, struct {
		Features []types.TargetFeature
		Title    string
		Context  string
	}{s.features, doc.Title, truncate(text, maxChartContext)})
	if err != nil {
		return types.ClaimChart{}, fmt.Errorf("rendering chart prompt: %w", err)
	}

	reply, err := llm.Generate[chartReply](ctx, s.client, llm.Request{
		SystemPrompt: examinerPrompt,
		UserPrompt:   buf.String(),
		SchemaName:   SchemaClaimChart,
		Temperature:  llm.Temp(0),
	}, s.attempts)
	if err != nil {
		return types.ClaimChart{}, fmt.Errorf("scoring %s: %w", doc.UID, err)
	}
	return normalizeChart(s.features, reply), nil
}

// CheckFeature asks whether doc discloses one feature, reading the
// paragraphs of its full text that mention the feature when available.
func (s *EvidenceScorer) CheckFeature(ctx context.Context, doc *types.FoundDocument, feature string) (types.SecondaryCheck, error) {
	keywords, ok := s.keywords[feature]
	if !ok || len(keywords) == 0 {
		keywords = keywordSet(feature)
	}

	text := ""
	if full := s.fullText(ctx, doc); full != "" {
		text = relevantParagraphs(full, keywords, checkParagraphs)
	}
	if text == "" {
		text = doc.Abstract
	}

	var buf bytes.Buffer
	err := checkPromptTmpl.Execute(&buf, struct {
		Feature string
		Title   string
		Context string
	}{feature, doc.Title, truncate(text, maxCheckContext)})
	if err != nil {
		return types.SecondaryCheck{}, fmt.Errorf("rendering check prompt: %w", err)
	}

	reply, err := llm.Generate[checkReply](ctx, s.client, llm.Request{
		SystemPrompt: examinerPrompt,
		UserPrompt:   buf.String(),
		SchemaName:   SchemaSecondary,
		Temperature:  llm.Temp(0),
	}, s.attempts)
	if err != nil {
		return types.SecondaryCheck{}, fmt.Errorf("checking %s for %q: %w", doc.UID, feature, err)
	}
	return types.SecondaryCheck{
		Disclosed: reply.IsDisclosed,
		Evidence:  reply.Evidence,
		Reasoning: reply.Reasoning,
	}, nil
}

// smartContext prefers the full-text paragraphs that mention any feature
// keyword and falls back to the abstract.
func (s *EvidenceScorer) smartContext(ctx context.Context, doc *types.FoundDocument) string {
	full := s.fullText(ctx, doc)
	if len([]rune(full)) > minFullTextRunes {
		if snippets := relevantParagraphs(full, s.allKeywords, scoreParagraphs); snippets != "" {
			return "Full-text excerpts:\n" + snippets
		}
	}
	return "Abstract:\n" + doc.Abstract
}

func (s *EvidenceScorer) fullText(ctx context.Context, doc *types.FoundDocument) string {
	if s.registry == nil || doc.UID == "" {
		return ""
	}
	client, err := s.registry.Get(doc.Backend)
	if err != nil {
		return ""
	}
	text, err := client.FullText(ctx, doc.UID)
	if err != nil {
		s.logger.DebugContext(ctx, "full text unavailable", "uid", doc.UID, "err", err)
		return ""
	}
	return text
}

// normalizeChart maps the reply onto the target features by ID, then by
// name, and clamps the match score.
func normalizeChart(features []types.TargetFeature, reply chartReply) types.ClaimChart {
	byID := make(map[string]chartRow, len(reply.ClaimChart))
	byName := make(map[string]chartRow, len(reply.ClaimChart))
	for _, row := range reply.ClaimChart {
		byID[strings.TrimSpace(row.FeatureID)] = row
		byName[strings.ToLower(strings.TrimSpace(row.FeatureName))] = row
	}

	chart := types.ClaimChart{MatchScore: min(max(reply.MatchScore, 0), 100)}
	for _, f := range features {
		m := types.FeatureMatch{FeatureID: f.ID, FeatureName: f.Name, Status: types.NotDisclosed}
		row, ok := byID[f.ID]
		if !ok {
			row, ok = byName[strings.ToLower(f.Name)]
		}
		if ok && isDisclosed(row.Status) {
			m.Status = types.Disclosed
			m.EvidenceQuote = row.Evidence
		}
		if ok {
			m.Reasoning = row.Reasoning
		}
		chart.Matches = append(chart.Matches, m)
	}
	return chart
}

func isDisclosed(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return s == "disclosed"
}
