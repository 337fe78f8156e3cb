// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent drives the prior-art search session: it plans, executes
// and reviews rounds of strategies and routes between the search tiers
// until a verdict is reached or the iteration budget runs out.
package agent

import (
	"errors"
	"fmt"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// Errors returned by State.Apply.
var (
	ErrSessionDone     = errors.New("session is done")
	ErrUnknownDocument = errors.New("document not found in session")
)

// State is the single mutable aggregate of a search session. It is owned by
// the orchestrator goroutine and changed only through Apply.
type State struct {
	SessionID    string
	CriticalDate string
	Anchor       string

	Matrix         types.ConceptMatrix
	ValidatedCodes []string
	DiffFeatures   []string

	Phase         types.Phase
	Iteration     int
	MaxIterations int

	ExecutedQueries map[string]bool
	ExecutedIntents []types.Intent

	// Reached is set once any strategy got an answer from its backend,
	// even an empty one.
	Reached bool

	Documents *types.DocumentSet
	Reviewed  map[string]bool

	BestEvidence    string
	BestCombination *types.Combination

	// Log records every executed strategy with the round and phase that ran it.
	Log []types.SearchLogEntry

	// Phases lists the phase of each completed round.
	Phases []types.Phase

	// CodeLimit caps ValidatedCodes. Zero means no cap.
	CodeLimit int
}

// NewState returns a session in the Init phase.
func NewState(sessionID, criticalDate, anchor string, maxIterations, codeLimit int) *State {
	return &State{
		SessionID:       sessionID,
		CriticalDate:    criticalDate,
		Anchor:          anchor,
		Phase:           types.PhaseInit,
		MaxIterations:   maxIterations,
		ExecutedQueries: make(map[string]bool),
		Documents:       types.NewDocumentSet(),
		Reviewed:        make(map[string]bool),
		CodeLimit:       codeLimit,
	}
}

// BestMatch names the closest reference and the features it lacks.
type BestMatch struct {
	UID     string
	Missing []string
}

// Delta is the change one step of a round makes to the session. List fields
// append, set fields union and scalar fields replace; zero values leave the
// state untouched.
type Delta struct {
	// Strategies are executed strategies. Their keys join ExecutedQueries,
	// their intents join ExecutedIntents and each gets a log entry.
	Strategies []types.Strategy

	// Documents merge into the session by UID; known UIDs keep their tags.
	Documents []types.FoundDocument

	// Reviewed UIDs join the reviewed set.
	Reviewed []string

	// Charts attach claim charts to documents that have none yet.
	Charts map[string]types.ClaimChart

	// ValidatedCodes union into the validated classification codes.
	ValidatedCodes []string

	// Matrix replaces the concept matrix.
	Matrix types.ConceptMatrix

	// Best replaces the best evidence and the diff features.
	Best *BestMatch

	// Combination replaces the best inventive-step combination.
	Combination *types.Combination

	// Phase replaces the current phase.
	Phase types.Phase

	// Iteration replaces the iteration counter.
	Iteration *int

	// CompletedRound appends the pre-delta phase to Phases.
	CompletedRound bool
}

// IsZero reports whether d changes nothing.
func (d Delta) IsZero() bool {
	return len(d.Strategies) == 0 && len(d.Documents) == 0 && len(d.Reviewed) == 0 &&
		len(d.Charts) == 0 && len(d.ValidatedCodes) == 0 && d.Matrix == nil &&
		d.Best == nil && d.Combination == nil && d.Phase == "" && d.Iteration == nil &&
		!d.CompletedRound
}

// Apply folds d into the state. It is atomic: on error nothing changes. A
// best match whose chart discloses every feature moves the session to Done
// in the same call, whatever d.Phase says.
func (s *State) Apply(d Delta) error {
	if d.IsZero() {
		return nil
	}
	if s.Phase == types.PhaseDone {
		return ErrSessionDone
	}
	if err := s.check(d); err != nil {
		return err
	}

	round, phase := s.Iteration+1, s.Phase
	for _, st := range d.Strategies {
		if st.Status != types.StatusError && st.Status != types.StatusPending {
			s.Reached = true
		}
		s.ExecutedQueries[st.Key()] = true
		s.ExecutedIntents = append(s.ExecutedIntents, st.Intent)
		s.Log = append(s.Log, types.SearchLogEntry{
			Round:        round,
			Phase:        phase,
			Name:         st.Name,
			Intent:       st.Intent,
			Backend:      st.Backend,
			Query:        st.Query,
			RelaxedQuery: st.RelaxedQuery,
			Status:       st.Status,
			Hits:         st.Hits,
		})
	}

	s.Documents.Merge(d.Documents)

	for uid, chart := range d.Charts {
		doc, _ := s.Documents.Get(uid)
		if doc.Evidence != nil {
			continue
		}
		c := chart
		doc.Evidence = &c
	}
	for _, uid := range d.Reviewed {
		s.Reviewed[uid] = true
	}

	if len(d.ValidatedCodes) > 0 {
		codes := types.NormalizeCodes(append(append([]string(nil), s.ValidatedCodes...), d.ValidatedCodes...))
		if s.CodeLimit > 0 && len(codes) > s.CodeLimit {
			codes = codes[:s.CodeLimit]
		}
		s.ValidatedCodes = codes
	}
	if d.Matrix != nil {
		s.Matrix = d.Matrix
	}
	if d.Combination != nil {
		c := *d.Combination
		s.BestCombination = &c
	}
	if d.Iteration != nil {
		s.Iteration = *d.Iteration
	}
	if d.CompletedRound {
		s.Phases = append(s.Phases, phase)
	}
	if d.Phase != "" {
		s.Phase = d.Phase
	}

	if d.Best != nil {
		s.BestEvidence = d.Best.UID
		s.DiffFeatures = append([]string(nil), d.Best.Missing...)
		if doc, ok := s.Documents.Get(d.Best.UID); ok && doc.Evidence != nil && doc.Evidence.FullMatch() {
			doc.NoveltyDestroying = true
			s.DiffFeatures = nil
			s.Phase = types.PhaseDone
		}
	}
	return nil
}

// check verifies that every UID d references is known once d's own
// documents are merged.
func (s *State) check(d Delta) error {
	incoming := make(map[string]bool, len(d.Documents))
	for _, doc := range d.Documents {
		incoming[doc.UID] = true
	}
	known := func(uid string) bool { return s.Documents.Has(uid) || incoming[uid] }

	for _, uid := range d.Reviewed {
		if !known(uid) {
			return fmt.Errorf("reviewed %q: %w", uid, ErrUnknownDocument)
		}
	}
	for uid := range d.Charts {
		if !known(uid) {
			return fmt.Errorf("chart for %q: %w", uid, ErrUnknownDocument)
		}
	}
	if d.Best != nil && !known(d.Best.UID) {
		return fmt.Errorf("best evidence %q: %w", d.Best.UID, ErrUnknownDocument)
	}
	if c := d.Combination; c != nil {
		for _, uid := range []string{c.PrimaryUID, c.SecondaryUID} {
			if !known(uid) {
				return fmt.Errorf("combination reference %q: %w", uid, ErrUnknownDocument)
			}
		}
	}
	return nil
}

// BestDocument returns the best evidence document, if any.
func (s *State) BestDocument() (*types.FoundDocument, bool) {
	if s.BestEvidence == "" {
		return nil, false
	}
	return s.Documents.Get(s.BestEvidence)
}

// bestDisclosed returns the disclosed-feature count of the best evidence.
func (s *State) bestDisclosed() int {
	doc, ok := s.BestDocument()
	if !ok || doc.Evidence == nil {
		return 0
	}
	return doc.Evidence.DisclosedCount()
}
