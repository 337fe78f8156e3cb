// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// DocumentSet holds found documents keyed by UID in first-seen order.
// It is not safe for concurrent use; the orchestrator merges into it from
// a single goroutine.
type DocumentSet struct {
	order []string
	docs  map[string]*FoundDocument
}

// NewDocumentSet returns an empty set.
func NewDocumentSet() *DocumentSet {
	return &DocumentSet{docs: make(map[string]*FoundDocument)}
}

// Merge adds documents whose UID is not yet known and returns the UIDs that
// were added. Known UIDs keep their original tags.
func (s *DocumentSet) Merge(docs []FoundDocument) []string {
	var added []string
	for _, d := range docs {
		if d.UID == "" {
			continue
		}
		if _, ok := s.docs[d.UID]; ok {
			continue
		}
		doc := d
		s.docs[d.UID] = &doc
		s.order = append(s.order, d.UID)
		added = append(added, d.UID)
	}
	return added
}

// Get returns the document with the given UID.
func (s *DocumentSet) Get(uid string) (*FoundDocument, bool) {
	d, ok := s.docs[uid]
	return d, ok
}

// Has reports whether uid is known.
func (s *DocumentSet) Has(uid string) bool {
	_, ok := s.docs[uid]
	return ok
}

// Len returns the number of documents.
func (s *DocumentSet) Len() int { return len(s.order) }

// All returns the documents in first-seen order.
func (s *DocumentSet) All() []*FoundDocument {
	out := make([]*FoundDocument, 0, len(s.order))
	for _, uid := range s.order {
		out = append(out, s.docs[uid])
	}
	return out
}

// Select returns the documents with the given UIDs, skipping unknown ones.
func (s *DocumentSet) Select(uids []string) []*FoundDocument {
	var out []*FoundDocument
	for _, uid := range uids {
		if d, ok := s.docs[uid]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Ranked returns the documents sorted by rerank score, highest first.
// Ties keep first-seen order.
func (s *DocumentSet) Ranked() []*FoundDocument {
	out := s.All()
	SortByRerank(out)
	return out
}

// SortByRerank sorts docs by rerank score descending, keeping input order on ties.
func SortByRerank(docs []*FoundDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].RerankScore > docs[j].RerankScore
	})
}
