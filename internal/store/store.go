// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists catalog snapshots in SQLite: run records, the
// current-state item table, SCD2 item history, quality scores, and health
// check results. Every component receives a *Store explicitly; nothing in
// this package holds global connection state.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// requiredTables lists the relations a healthy database must contain.
var requiredTables = []string{
	"runs", "items_current", "items_history", "quality_scores", "health_checks",
}

// Store manages the catalog SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path, creating the parent
// directory and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
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

// Timestamps are stored as integer Unix milliseconds (UTC) so range
// comparisons in SQL stay exact.
func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			source TEXT,
			portal_url TEXT,
			org_id TEXT,
			triggered_by TEXT,
			pipeline_version TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS items_current (
			item_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			item_type TEXT NOT NULL,
			owner TEXT NOT NULL,
			url TEXT,
			access TEXT,
			created_at INTEGER,
			modified_at INTEGER,
			tags_json TEXT,
			tags_count INTEGER,
			snippet TEXT,
			snippet_len INTEGER,
			description TEXT,
			description_len INTEGER,
			has_description INTEGER,
			thumbnail TEXT,
			has_thumbnail INTEGER,
			extent_xmin REAL,
			extent_ymin REAL,
			extent_xmax REAL,
			extent_ymax REAL,
			has_extent INTEGER,
			num_views INTEGER,
			content_hash TEXT NOT NULL,
			last_seen_run_id TEXT,
			last_seen_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS items_history (
			item_id TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			valid_from INTEGER NOT NULL,
			valid_to INTEGER,
			is_current INTEGER NOT NULL,
			title TEXT,
			item_type TEXT,
			owner TEXT,
			url TEXT,
			access TEXT,
			modified_at INTEGER,
			tags_json TEXT,
			description_len INTEGER,
			has_extent INTEGER,
			extent_xmin REAL,
			extent_ymin REAL,
			extent_xmax REAL,
			extent_ymax REAL,
			first_seen_run_id TEXT NOT NULL,
			last_seen_run_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_item ON items_history(item_id)`,
		// At most one open interval per item.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_item_current
			ON items_history(item_id) WHERE is_current = 1`,
		`CREATE TABLE IF NOT EXISTS quality_scores (
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			breakdown_json TEXT,
			missing_json TEXT,
			computed_at INTEGER,
			PRIMARY KEY (run_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS health_checks (
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			checked_url TEXT,
			ok INTEGER NOT NULL,
			status_code INTEGER,
			latency_ms INTEGER,
			error_message TEXT,
			checked_at INTEGER,
			PRIMARY KEY (run_id, item_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// --- timestamp helpers ---

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func toMillisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromMillisPtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

// --- runs ---

// CreateRun records a new run with a null finished_at.
func (s *Store) CreateRun(ctx context.Context, run types.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, source, portal_url, org_id, triggered_by, pipeline_version)
		 VALUES (?, ?, NULL, ?, ?, ?, ?, ?)`,
		run.RunID, toMillis(run.StartedAt), run.Source, run.PortalURL,
		run.OrgID, run.TriggeredBy, run.PipelineVersion,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}
	return nil
}

// FinishRun sets the run's end timestamp. Called exactly once per run, on
// completion or on controlled failure.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		toMillis(finishedAt), runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: run not found", runID)
	}
	return nil
}

// GetRun loads one run by identifier.
func (s *Store) GetRun(ctx context.Context, runID string) (types.Run, error) {
	var (
		run        types.Run
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, finished_at, source, portal_url, org_id, triggered_by, pipeline_version
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &startedAt, &finishedAt, &run.Source, &run.PortalURL,
		&run.OrgID, &run.TriggeredBy, &run.PipelineVersion)
	if err != nil {
		return types.Run{}, fmt.Errorf("loading run %s: %w", runID, err)
	}
	run.StartedAt = fromMillis(startedAt)
	run.FinishedAt = fromMillisPtr(finishedAt)
	return run, nil
}

// LatestRunID returns the identifier of the most recently started run, or
// an empty string when no run exists.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY started_at DESC, run_id DESC LIMIT 1`,
	).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding latest run: %w", err)
	}
	return runID, nil
}

// --- current state ---

// UpsertItems writes the batch into items_current keyed by item_id, last
// write wins. Existing rows for items absent from the batch are untouched.
func (s *Store) UpsertItems(ctx context.Context, items []types.CanonicalItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items_current (
			item_id, title, item_type, owner, url, access,
			created_at, modified_at, tags_json, tags_count,
			snippet, snippet_len, description, description_len, has_description,
			thumbnail, has_thumbnail,
			extent_xmin, extent_ymin, extent_xmax, extent_ymax, has_extent,
			num_views, content_hash, last_seen_run_id, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			title=excluded.title, item_type=excluded.item_type, owner=excluded.owner,
			url=excluded.url, access=excluded.access,
			created_at=excluded.created_at, modified_at=excluded.modified_at,
			tags_json=excluded.tags_json, tags_count=excluded.tags_count,
			snippet=excluded.snippet, snippet_len=excluded.snippet_len,
			description=excluded.description, description_len=excluded.description_len,
			has_description=excluded.has_description,
			thumbnail=excluded.thumbnail, has_thumbnail=excluded.has_thumbnail,
			extent_xmin=excluded.extent_xmin, extent_ymin=excluded.extent_ymin,
			extent_xmax=excluded.extent_xmax, extent_ymax=excluded.extent_ymax,
			has_extent=excluded.has_extent,
			num_views=excluded.num_views, content_hash=excluded.content_hash,
			last_seen_run_id=excluded.last_seen_run_id, last_seen_at=excluded.last_seen_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		tagsJSON, _ := json.Marshal(item.Tags)
		_, err := stmt.ExecContext(ctx,
			item.ItemID, item.Title, item.ItemType, item.Owner, item.URL, item.Access,
			toMillisPtr(item.CreatedAt), toMillisPtr(item.ModifiedAt),
			string(tagsJSON), item.TagsCount,
			item.Snippet, item.SnippetLen, item.Description, item.DescriptionLen,
			item.HasDescription, item.Thumbnail, item.HasThumbnail,
			item.ExtentXMin, item.ExtentYMin, item.ExtentXMax, item.ExtentYMax, item.HasExtent,
			item.NumViews, item.ContentHash, item.LastSeenRunID, toMillis(item.LastSeenAt),
		)
		if err != nil {
			return fmt.Errorf("upserting item %s: %w", item.ItemID, err)
		}
	}

	return tx.Commit()
}

// GetCurrentItem loads one row from items_current.
func (s *Store) GetCurrentItem(ctx context.Context, itemID string) (types.CanonicalItem, error) {
	var (
		item                 types.CanonicalItem
		createdAt, modified  sql.NullInt64
		lastSeenAt           sql.NullInt64
		tagsJSON             string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT item_id, title, item_type, owner, url, access,
			created_at, modified_at, tags_json, tags_count,
			snippet, snippet_len, description, description_len, has_description,
			thumbnail, has_thumbnail,
			extent_xmin, extent_ymin, extent_xmax, extent_ymax, has_extent,
			num_views, content_hash, last_seen_run_id, last_seen_at
		 FROM items_current WHERE item_id = ?`, itemID,
	).Scan(&item.ItemID, &item.Title, &item.ItemType, &item.Owner, &item.URL, &item.Access,
		&createdAt, &modified, &tagsJSON, &item.TagsCount,
		&item.Snippet, &item.SnippetLen, &item.Description, &item.DescriptionLen, &item.HasDescription,
		&item.Thumbnail, &item.HasThumbnail,
		&item.ExtentXMin, &item.ExtentYMin, &item.ExtentXMax, &item.ExtentYMax, &item.HasExtent,
		&item.NumViews, &item.ContentHash, &item.LastSeenRunID, &lastSeenAt)
	if err != nil {
		return types.CanonicalItem{}, fmt.Errorf("loading item %s: %w", itemID, err)
	}
	item.CreatedAt = fromMillisPtr(createdAt)
	item.ModifiedAt = fromMillisPtr(modified)
	if lastSeenAt.Valid {
		item.LastSeenAt = fromMillis(lastSeenAt.Int64)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
		return types.CanonicalItem{}, fmt.Errorf("parsing tags for item %s: %w", itemID, err)
	}
	return item, nil
}

// --- append-only relations ---

// InsertScores appends one quality score per (run, item).
func (s *Store) InsertScores(ctx context.Context, scores []types.QualityScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quality_scores (run_id, item_id, score, breakdown_json, missing_json, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing score insert: %w", err)
	}
	defer stmt.Close()

	for _, sc := range scores {
		breakdownJSON, _ := json.Marshal(sc.Breakdown)
		missingJSON, _ := json.Marshal(sc.Missing)
		_, err := stmt.ExecContext(ctx,
			sc.RunID, sc.ItemID, sc.Score,
			string(breakdownJSON), string(missingJSON), toMillis(sc.ComputedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting score for item %s: %w", sc.ItemID, err)
		}
	}

	return tx.Commit()
}

// InsertHealthChecks appends one probe result per (run, item).
func (s *Store) InsertHealthChecks(ctx context.Context, results []types.HealthCheckResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO health_checks (run_id, item_id, checked_url, ok, status_code, latency_ms, error_message, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing health insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		var status, latency any
		if r.StatusCode != nil {
			status = *r.StatusCode
		}
		if r.LatencyMS != nil {
			latency = *r.LatencyMS
		}
		var errMsg any
		if r.ErrorMessage != "" {
			errMsg = r.ErrorMessage
		}
		_, err := stmt.ExecContext(ctx,
			r.RunID, r.ItemID, r.CheckedURL, r.OK, status, latency, errMsg, toMillis(r.CheckedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting health check for item %s: %w", r.ItemID, err)
		}
	}

	return tx.Commit()
}

// --- preflight ---

// Status summarizes database health and the latest run's row counts.
type Status struct {
	MissingTables  []string
	HasRuns        bool
	LatestRun      types.Run
	Items          int
	Scores         int
	HealthChecks   int
	BrokenServices int
}

// OK reports whether the schema is complete.
func (st Status) OK() bool { return len(st.MissingTables) == 0 }

// Status runs preflight checks: required tables present, latest run
// metrics. A database with no runs yet is healthy.
func (s *Store) Status(ctx context.Context) (Status, error) {
	var st Status

	for _, table := range requiredTables {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			return Status{}, fmt.Errorf("checking table %s: %w", table, err)
		}
		if count == 0 {
			st.MissingTables = append(st.MissingTables, table)
		}
	}
	if !st.OK() {
		return st, nil
	}

	runID, err := s.LatestRunID(ctx)
	if err != nil {
		return Status{}, err
	}
	if runID == "" {
		return st, nil
	}
	st.HasRuns = true
	if st.LatestRun, err = s.GetRun(ctx, runID); err != nil {
		return Status{}, err
	}

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.Items, `SELECT count(*) FROM items_current`, nil},
		{&st.Scores, `SELECT count(*) FROM quality_scores WHERE run_id = ?`, []any{runID}},
		{&st.HealthChecks, `SELECT count(*) FROM health_checks WHERE run_id = ?`, []any{runID}},
		{&st.BrokenServices, `SELECT count(*) FROM health_checks WHERE run_id = ? AND ok = 0`, []any{runID}},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return Status{}, fmt.Errorf("counting rows: %w", err)
		}
	}

	return st, nil
}
