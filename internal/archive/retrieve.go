// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// QueryOptions filters archived references.
type QueryOptions struct {
	// Query is an FTS5 match expression over document titles.
	Query string

	// Tag keeps only references cited with this category.
	Tag types.Tag

	// SessionID keeps only references of one session.
	SessionID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// DocumentResult is an archived reference with its session context.
type DocumentResult struct {
	types.RelevantDocument `yaml:",inline"`

	SessionID string        `json:"session_id" yaml:"session_id"`
	Outcome   types.Outcome `json:"session_outcome" yaml:"session_outcome"`
}

// Documents searches archived references. Full-text queries are ranked by
// relevance; filter-only queries are ordered by session and score.
func (s *Store) Documents(ctx context.Context, opts QueryOptions) ([]DocumentResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)
	if useFTS {
		qb.WriteString(
			`SELECT d.session_id, d.uid, d.tag, d.role, d.title, d.score, d.intent, d.chart, s.outcome
			FROM documents_fts
			JOIN documents d ON d.rowid = documents_fts.rowid
			JOIN sessions s ON s.id = d.session_id
			WHERE documents_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT d.session_id, d.uid, d.tag, d.role, d.title, d.score, d.intent, d.chart, s.outcome
			FROM documents d
			JOIN sessions s ON s.id = d.session_id
			WHERE 1=1`)
	}
	if opts.Tag != "" {
		qb.WriteString(` AND d.tag = ?`)
		args = append(args, string(opts.Tag))
	}
	if opts.SessionID != "" {
		qb.WriteString(` AND d.session_id = ?`)
		args = append(args, opts.SessionID)
	}
	if useFTS {
		qb.WriteString(` ORDER BY documents_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY d.session_id, d.score DESC`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var results []DocumentResult
	for rows.Next() {
		var (
			r       DocumentResult
			tag     string
			role    sql.NullString
			title   sql.NullString
			intent  sql.NullString
			chart   sql.NullString
			outcome string
		)
		if err := rows.Scan(&r.SessionID, &r.UID, &tag, &role, &title, &r.Score, &intent, &chart, &outcome); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Tag = types.Tag(tag)
		r.Role = role.String
		r.Title = title.String
		r.Intent = types.Intent(intent.String)
		r.Outcome = types.Outcome(outcome)
		if chart.Valid && chart.String != "" {
			var c types.ClaimChart
			if err := json.Unmarshal([]byte(chart.String), &c); err == nil {
				r.ClaimChart = &c
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExecutedQueries returns the distinct backend:query keys run by earlier
// sessions, for operators comparing search histories.
func (s *Store) ExecutedQueries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT backend || ':' || query FROM queries ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning query: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
