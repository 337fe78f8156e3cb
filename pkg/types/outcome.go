// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Phase is the search session's state-machine phase.
type Phase string

const (
	PhaseInit  Phase = "Init"
	PhaseTier1 Phase = "Tier1Precision"
	PhaseTier2 Phase = "Tier2Inventive"
	PhaseTier3 Phase = "Tier3Broad"
	PhaseDone  Phase = "Done"
)

// Outcome is the terminal classification of a session, in priority order.
type Outcome string

const (
	OutcomeNoveltyDestroyed Outcome = "NoveltyDestroyed"
	OutcomeCombination      Outcome = "InventiveCombination"
	OutcomeClosestMatch     Outcome = "ClosestMatchOnly"
	OutcomeNoArt            Outcome = "NoRelevantArt"
)

// Tag is the search-report category of a cited reference.
type Tag string

const (
	TagX Tag = "X"
	TagY Tag = "Y"
	TagA Tag = "A"
	TagE Tag = "E"
)

// SearchLogEntry records one executed strategy.
type SearchLogEntry struct {
	Round        int            `json:"round" yaml:"round"`
	Phase        Phase          `json:"phase" yaml:"phase"`
	Name         string         `json:"name" yaml:"name"`
	Intent       Intent         `json:"intent" yaml:"intent"`
	Backend      string         `json:"backend" yaml:"backend"`
	Query        string         `json:"query" yaml:"query"`
	RelaxedQuery string         `json:"relaxed_query,omitempty" yaml:"relaxed_query,omitempty"`
	Status       StrategyStatus `json:"status" yaml:"status"`
	Hits         int            `json:"hits" yaml:"hits"`
}

// RelevantDocument is one ranked citation in the final report.
type RelevantDocument struct {
	Tag Tag `json:"tag" yaml:"tag"`

	// Role is "D1" or "D2" for the references of an inventive combination.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	UID        string      `json:"uid" yaml:"uid"`
	Title      string      `json:"title" yaml:"title"`
	Score      float64     `json:"score" yaml:"score"`
	Intent     Intent      `json:"intent" yaml:"intent"`
	ClaimChart *ClaimChart `json:"claim_chart,omitempty" yaml:"claim_chart,omitempty"`
}

// SearchMetrics summarizes the session.
type SearchMetrics struct {
	TotalQueries    int      `json:"total_queries" yaml:"total_queries"`
	TotalHits       int      `json:"total_hits" yaml:"total_hits"`
	Rounds          int      `json:"rounds" yaml:"rounds"`
	PhasesCompleted []Phase  `json:"phases_completed" yaml:"phases_completed"`
	ValidatedCodes  []string `json:"validated_codes" yaml:"validated_codes"`
}

// SearchReport is the sole output of a search session.
type SearchReport struct {
	SessionID    string    `json:"session_id" yaml:"session_id"`
	CriticalDate string    `json:"critical_date,omitempty" yaml:"critical_date,omitempty"`
	Outcome      Outcome   `json:"outcome" yaml:"outcome"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`

	// PublicationNumber is the patent under search, copied from the case.
	PublicationNumber string `json:"publication_number,omitempty" yaml:"publication_number,omitempty"`

	SearchLog         []SearchLogEntry   `json:"search_log" yaml:"search_log"`
	RelevantDocuments []RelevantDocument `json:"relevant_documents" yaml:"relevant_documents"`
	Combination       *Combination       `json:"combination,omitempty" yaml:"combination,omitempty"`
	Narrative         string             `json:"examination_narrative" yaml:"examination_narrative"`
	Metrics           SearchMetrics      `json:"metrics" yaml:"metrics"`
}
