// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists finished search reports in SQLite so past
// sessions and their cited references can be listed and searched.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

const dbFile = "priorart.db"

// ErrNotFound is returned when a session ID is not in the archive.
var ErrNotFound = errors.New("session not found")

// Store manages the archive database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates the archive database at cfg.Dir/priorart.db and
// creates the schema if it does not exist.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "archive"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	s := &Store{db: db, dir: dir, maxResults: maxResults}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			critical_date TEXT,
			outcome TEXT NOT NULL,
			created_at TEXT NOT NULL,
			rounds INTEGER,
			total_queries INTEGER,
			total_hits INTEGER,
			report TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			uid TEXT NOT NULL,
			tag TEXT NOT NULL,
			role TEXT,
			title TEXT,
			score REAL,
			intent TEXT,
			chart TEXT,
			UNIQUE(session_id, uid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_tag ON documents(tag)`,
		`CREATE TABLE IF NOT EXISTS queries (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			round INTEGER,
			phase TEXT,
			name TEXT,
			intent TEXT,
			backend TEXT,
			query TEXT,
			relaxed_query TEXT,
			status TEXT,
			hits INTEGER,
			PRIMARY KEY (session_id, seq)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='documents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE documents_fts USING fts5(title, content=documents, content_rowid=rowid)`,
		`CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, title) VALUES (new.rowid, new.title);
		END`,
		`CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, title) VALUES('delete', old.rowid, old.title);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// Save stores a report, replacing any earlier copy of the same session.
func (s *Store) Save(ctx context.Context, r *types.SearchReport) error {
	if r.SessionID == "" {
		return fmt.Errorf("saving report: empty session id")
	}
	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Children go first so the FTS delete trigger sees every title.
	for _, table := range []string{"documents", "queries", "sessions"} {
		col := "session_id"
		if table == "sessions" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+col+` = ?`, r.SessionID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, critical_date, outcome, created_at, rounds, total_queries, total_hits, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.CriticalDate, string(r.Outcome), r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.Metrics.Rounds, r.Metrics.TotalQueries, r.Metrics.TotalHits, string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO documents (session_id, uid, tag, role, title, score, intent, chart)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer docStmt.Close()

	for _, d := range r.RelevantDocuments {
		var chart []byte
		if d.ClaimChart != nil {
			chart, _ = json.Marshal(d.ClaimChart)
		}
		if _, err := docStmt.ExecContext(ctx,
			r.SessionID, d.UID, string(d.Tag), d.Role, d.Title, d.Score, string(d.Intent), string(chart),
		); err != nil {
			return fmt.Errorf("inserting document %s: %w", d.UID, err)
		}
	}

	qStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO queries (session_id, seq, round, phase, name, intent, backend, query, relaxed_query, status, hits)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing query insert: %w", err)
	}
	defer qStmt.Close()

	for i, q := range r.SearchLog {
		if _, err := qStmt.ExecContext(ctx,
			r.SessionID, i, q.Round, string(q.Phase), q.Name, string(q.Intent), q.Backend,
			q.Query, q.RelaxedQuery, string(q.Status), q.Hits,
		); err != nil {
			return fmt.Errorf("inserting query %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load returns the stored report of a session.
func (s *Store) Load(ctx context.Context, sessionID string) (*types.SearchReport, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var r types.SearchReport
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parsing stored report: %w", err)
	}
	return &r, nil
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID           string        `json:"id" yaml:"id"`
	CriticalDate string        `json:"critical_date,omitempty" yaml:"critical_date,omitempty"`
	Outcome      types.Outcome `json:"outcome" yaml:"outcome"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	Rounds       int           `json:"rounds" yaml:"rounds"`
	TotalQueries int           `json:"total_queries" yaml:"total_queries"`
	TotalHits    int           `json:"total_hits" yaml:"total_hits"`
}

// Sessions lists archived sessions, newest first. limit <= 0 uses the
// store default.
func (s *Store) Sessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, critical_date, outcome, created_at, rounds, total_queries, total_hits
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			ss       SessionSummary
			critical sql.NullString
			outcome  string
			created  string
		)
		if err := rows.Scan(&ss.ID, &critical, &outcome, &created, &ss.Rounds, &ss.TotalQueries, &ss.TotalHits); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		ss.CriticalDate = critical.String
		ss.Outcome = types.Outcome(outcome)
		ss.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, ss)
	}
	return out, rows.Err()
}
