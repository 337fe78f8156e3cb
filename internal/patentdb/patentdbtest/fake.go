// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package patentdbtest provides an in-memory patentdb.Client for tests.
package patentdbtest

import (
	"context"
	"strings"
	"sync"

	"github.com/pdiddy/priorart-engine/internal/patentdb"
)

type rule struct {
	substr string
	res    patentdb.Result
	err    error
}

// Fake answers searches from canned results. Queries with no matching rule
// return zero hits. It is safe for concurrent use.
type Fake struct {
	name string

	mu        sync.Mutex
	rules     []rule
	semantic  []rule
	family    map[string][]patentdb.Hit
	citations map[string][]patentdb.Hit
	texts     map[string]string
	calls     []patentdb.Request
	semCalls  []patentdb.Request
}

// New returns an empty fake registered under name.
func New(name string) *Fake {
	return &Fake{
		name:      name,
		family:    make(map[string][]patentdb.Hit),
		citations: make(map[string][]patentdb.Hit),
		texts:     make(map[string]string),
	}
}

// On answers boolean queries containing substr with hits. The total equals len(hits).
func (f *Fake) On(substr string, hits ...patentdb.Hit) *Fake {
	return f.OnTotal(substr, len(hits), hits...)
}

// OnTotal is On with an explicit total hit count.
func (f *Fake) OnTotal(substr string, total int, hits ...patentdb.Hit) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{substr: substr, res: patentdb.Result{Total: total, Hits: hits}})
	return f
}

// OnSemantic answers semantic searches whose text contains substr.
func (f *Fake) OnSemantic(substr string, hits ...patentdb.Hit) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semantic = append(f.semantic, rule{substr: substr, res: patentdb.Result{Total: len(hits), Hits: hits}})
	return f
}

// Fail makes boolean queries containing substr return err.
func (f *Fake) Fail(substr string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{substr: substr, err: err})
	return f
}

// WithFamily sets the family members of number.
func (f *Fake) WithFamily(number string, hits ...patentdb.Hit) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.family[number] = hits
	return f
}

// WithCitations sets the citations of number.
func (f *Fake) WithCitations(number string, hits ...patentdb.Hit) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.citations[number] = hits
	return f
}

// WithText sets the full text of uid.
func (f *Fake) WithText(uid, text string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts[uid] = text
	return f
}

// Name returns the backend name given to New.
func (f *Fake) Name() string { return f.name }

// Search matches req.Query against the boolean rules in registration order.
func (f *Fake) Search(ctx context.Context, req patentdb.Request) (patentdb.Result, error) {
	if err := ctx.Err(); err != nil {
		return patentdb.Result{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return match(f.rules, req)
}

// SearchSemantic matches req.Query against the semantic rules.
func (f *Fake) SearchSemantic(ctx context.Context, req patentdb.Request) (patentdb.Result, error) {
	if err := ctx.Err(); err != nil {
		return patentdb.Result{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semCalls = append(f.semCalls, req)
	return match(f.semantic, req)
}

// Family returns the hits set by WithFamily.
func (f *Fake) Family(_ context.Context, number string, limit int) ([]patentdb.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capHits(f.family[number], limit), nil
}

// Citations returns the hits set by WithCitations.
func (f *Fake) Citations(_ context.Context, number string, limit int) ([]patentdb.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capHits(f.citations[number], limit), nil
}

// FullText returns the text set by WithText, or patentdb.ErrUnsupported.
func (f *Fake) FullText(_ context.Context, uid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.texts[uid]
	if !ok {
		return "", patentdb.ErrUnsupported
	}
	return text, nil
}

// Calls returns the boolean search requests received so far.
func (f *Fake) Calls() []patentdb.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patentdb.Request(nil), f.calls...)
}

// SemanticCalls returns the semantic search requests received so far.
func (f *Fake) SemanticCalls() []patentdb.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patentdb.Request(nil), f.semCalls...)
}

func match(rules []rule, req patentdb.Request) (patentdb.Result, error) {
	for _, r := range rules {
		if strings.Contains(req.Query, r.substr) {
			if r.err != nil {
				return patentdb.Result{}, r.err
			}
			res := r.res
			res.Hits = capHits(res.Hits, req.Limit)
			return res, nil
		}
	}
	return patentdb.Result{}, nil
}

func capHits(hits []patentdb.Hit, limit int) []patentdb.Hit {
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return append([]patentdb.Hit(nil), hits...)
}
