// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package patentdb adapts external patent and literature search services to
// one Client interface: boolean search, semantic search, family and citation
// expansion, and full-text retrieval.
package patentdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupported is returned by backends that cannot serve an operation.
var ErrUnsupported = errors.New("operation not supported by backend")

// Request is one search call.
type Request struct {
	// Query is the vendor query string, or free text for semantic search.
	Query string

	// Limit is the page size.
	Limit int

	// ToDate restricts results to publications before this YYYYMMDD date.
	// Backends that carry date filters inside Query ignore it.
	ToDate string
}

// Hit is one document returned by a backend.
type Hit struct {
	UID                 string
	PublicationNumber   string
	Title               string
	Abstract            string
	ClassificationCodes []string
	Assignees           []string

	// PublicationDate is YYYYMMDD when known.
	PublicationDate string

	// Score is the backend's relevance on a 0-100 scale.
	Score float64
}

// Result is a page of hits plus the backend's total hit count.
type Result struct {
	Total int
	Hits  []Hit
}

// Client is a patent search backend.
type Client interface {
	// Name returns the backend identifier used in strategies.
	Name() string

	Search(ctx context.Context, req Request) (Result, error)
	SearchSemantic(ctx context.Context, req Request) (Result, error)

	// Family returns family members of the publication number, excluding
	// the document itself.
	Family(ctx context.Context, number string, limit int) ([]Hit, error)

	// Citations returns forward and backward citations of the publication number.
	Citations(ctx context.Context, number string, limit int) ([]Hit, error)

	// FullText returns the plain-text description of uid.
	FullText(ctx context.Context, uid string) (string, error)
}

// Registry holds the configured backends by name.
type Registry struct {
	clients map[string]Client
	primary string
}

// NewRegistry registers clients; the first one is the primary backend.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client)}
	for _, c := range clients {
		if c == nil {
			continue
		}
		if r.primary == "" {
			r.primary = c.Name()
		}
		r.clients[c.Name()] = c
	}
	return r
}

// Get returns the backend called name.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown search backend %q", name)
	}
	return c, nil
}

// Has reports whether a backend called name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.clients[name]
	return ok
}

// Primary returns the name of the primary backend.
func (r *Registry) Primary() string { return r.primary }

// Names returns the registered backend names in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.clients))
	for name := range r.clients {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// positionScore maps a result's rank to a 0-100 score for backends that do
// not report relevance: the first result scores 100, the last 10.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 100
	}
	return 100 * (1.0 - float64(i)/float64(total-1)*0.9)
}
