// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/priorart-engine/internal/llm"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

// ErrNoUsableFeatures means the report names no features, so no search can
// be planned.
var ErrNoUsableFeatures = errors.New("technical report has no usable features")

// Feature score bands used to assign matrix roles.
const (
	highScore   = 4
	mediumScore = 2

	minKeyFeatures = 2
	maxKeyFeatures = 3
	maxFunctional  = 2
)

// BuildInitialMatrix derives the concept matrix from the report. The
// deterministic skeleton fixes the roles; the model only adds synonyms and
// classification hints, so a failed expansion still yields a usable matrix.
func (p *Planner) BuildInitialMatrix(ctx context.Context) (types.ConceptMatrix, error) {
	matrix, err := Skeleton(p.report)
	if err != nil {
		return nil, err
	}

	prompt, err := render(matrixPromptTmpl, promptData{Report: p.report, Matrix: matrix})
	if err != nil {
		return nil, err
	}
	reply, err := llm.Generate[matrixReply](ctx, p.client, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		SchemaName:   SchemaMatrix,
		Temperature:  llm.Temp(0.2),
	}, p.attempts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.WarnContext(ctx, "matrix expansion failed, using skeleton", "err", err)
		return matrix, nil
	}

	expanded := mergeExpansion(matrix, reply.Concepts)
	p.logger.InfoContext(ctx, "concept matrix built", "concepts", len(expanded))
	return expanded, nil
}

// Skeleton builds the role assignment from feature scores: one Subject
// (subject matter, title, technical field or top feature, first non-empty),
// two or three KeyFeature entries from the highest-scored features and up to
// two Functional entries from the medium-scored remainder.
func Skeleton(r types.TechnicalReport) (types.ConceptMatrix, error) {
	ranked := r.RankedFeatures()
	if len(ranked) == 0 {
		return nil, ErrNoUsableFeatures
	}

	subject := firstNonEmpty(r.SubjectMatter, r.Title, r.TechnicalField, ranked[0].Name)

	var matrix types.ConceptMatrix
	if subject != "" {
		matrix = append(matrix, types.ConceptEntry{
			ID:                  "A1",
			Role:                types.RoleSubject,
			LocalTerms:          localTerms(subject),
			EnglishTerms:        englishTerms(subject),
			ClassificationCodes: types.NormalizeCodes(r.ClassificationCodes),
		})
	}

	// Key features: the high band, topped up from the next ranked features
	// to at least two when the report has them.
	var keys int
	for _, f := range ranked {
		if keys == maxKeyFeatures || (f.Score < highScore && keys >= minKeyFeatures) {
			break
		}
		keys++
		matrix = append(matrix, featureEntry(fmt.Sprintf("B%d", keys), types.RoleKeyFeature, f))
	}

	var functional int
	for _, f := range ranked[keys:] {
		if functional == maxFunctional || f.Score < mediumScore {
			break
		}
		functional++
		matrix = append(matrix, featureEntry(fmt.Sprintf("C%d", functional), types.RoleFunctional, f))
	}
	return matrix, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func featureEntry(id string, role types.Role, f types.Feature) types.ConceptEntry {
	return types.ConceptEntry{
		ID:           id,
		Role:         role,
		LocalTerms:   localTerms(f.Name),
		EnglishTerms: englishTerms(f.Name),
	}
}

// localTerms and englishTerms seed a concept with its own name in the
// matching list.
func localTerms(name string) []string {
	if isCJK(name) {
		return []string{name}
	}
	return nil
}

func englishTerms(name string) []string {
	if isCJK(name) {
		return nil
	}
	return []string{name}
}

func isCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fa5 {
			return true
		}
	}
	return false
}

// mergeExpansion appends the model's terms to the matching skeleton entries.
// Unknown concept IDs are ignored.
func mergeExpansion(matrix types.ConceptMatrix, concepts []conceptTerms) types.ConceptMatrix {
	out := matrix.Clone()
	for _, c := range concepts {
		for i := range out {
			if out[i].ID != c.ConceptID {
				continue
			}
			out[i].LocalTerms = types.AppendTerms(out[i].LocalTerms, c.LocalTerms)
			out[i].EnglishTerms = types.AppendTerms(out[i].EnglishTerms, c.EnglishTerms)
			out[i].ClassificationCodes = types.NormalizeCodes(append(out[i].ClassificationCodes, c.ClassificationCodes...))
			if out[i].FeatureType == "" {
				out[i].FeatureType = c.FeatureType
			}
		}
	}
	return out
}
