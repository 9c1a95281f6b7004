// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// staleAfter is how long an item can go unmodified before it counts as stale.
const staleAfter = 2 * 365 * 24 * time.Hour

// IssueCategory names one of the fixed issue classes the aggregator reports.
type IssueCategory string

const (
	IssueMissingTags        IssueCategory = "missing_tags"
	IssueMissingDescription IssueCategory = "missing_description"
	IssueMissingExtent      IssueCategory = "missing_extent"
	IssueStale              IssueCategory = "stale_items"
	IssueBrokenService      IssueCategory = "broken_services"
)

// Categories lists every issue category in report order.
var Categories = []IssueCategory{
	IssueMissingTags, IssueMissingDescription, IssueMissingExtent,
	IssueStale, IssueBrokenService,
}

// RunSummary holds snapshot-level counts for one run.
type RunSummary struct {
	TotalItems  int
	ScoredItems int
	CheckedURLs int
}

// QualityStats holds score-distribution statistics for one run.
type QualityStats struct {
	Scored      int
	AvgScore    float64
	MinScore    int
	MaxScore    int
	HighQuality int // score >= 70
	LowQuality  int // score < 50
}

// IssueRow is one flagged item within a category.
type IssueRow struct {
	ItemID       string
	Title        string
	Owner        string
	ItemType     string
	URL          string
	ModifiedAt   *time.Time
	StatusCode   *int
	ErrorMessage string
	CheckedURL   string
}

// OwnerRollup aggregates issue counts for one owner.
type OwnerRollup struct {
	Owner              string
	TotalItems         int
	MissingTags        int
	MissingDescription int
	Stale              int
	BrokenServices     int
}

// ChangeRow is one item whose history gained an interval in the target run.
type ChangeRow struct {
	ItemID     string
	Title      string
	Owner      string
	ItemType   string
	ChangeType string // "New" or "Modified"
}

// RemediationRow joins current state with the target run's score and health
// rows for one item.
type RemediationRow struct {
	ItemID         string
	Title          string
	ItemType       string
	Owner          string
	URL            string
	ModifiedAt     *time.Time
	TagsCount      int
	HasDescription bool
	HasExtent      bool
	Score          *int
	HealthOK       *bool
	StatusCode     *int
	ErrorMessage   string
	CheckedURL     string
}

// RunSummary computes snapshot counts for the target run. Score and health
// counts are scoped to that run alone.
func (s *Store) RunSummary(ctx context.Context, runID string) (RunSummary, error) {
	var sum RunSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM items_current),
			(SELECT count(*) FROM quality_scores WHERE run_id = ?),
			(SELECT count(*) FROM health_checks WHERE run_id = ?)`,
		runID, runID,
	).Scan(&sum.TotalItems, &sum.ScoredItems, &sum.CheckedURLs)
	if err != nil {
		return RunSummary{}, fmt.Errorf("computing run summary: %w", err)
	}
	return sum, nil
}

// QualityStats computes score-distribution statistics for the target run.
func (s *Store) QualityStats(ctx context.Context, runID string) (QualityStats, error) {
	query, args, err := sq.Select(
		"count(*)",
		"COALESCE(avg(score), 0)",
		"COALESCE(min(score), 0)",
		"COALESCE(max(score), 0)",
		"count(CASE WHEN score >= 70 THEN 1 END)",
		"count(CASE WHEN score < 50 THEN 1 END)",
	).From("quality_scores").Where(sq.Eq{"run_id": runID}).ToSql()
	if err != nil {
		return QualityStats{}, fmt.Errorf("building quality stats query: %w", err)
	}

	var stats QualityStats
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Scored, &stats.AvgScore, &stats.MinScore, &stats.MaxScore,
		&stats.HighQuality, &stats.LowQuality)
	if err != nil {
		return QualityStats{}, fmt.Errorf("computing quality stats: %w", err)
	}
	return stats, nil
}

// IssueRows lists the items flagged under one category. Health-driven
// categories join only the target run's health rows; limit 0 means no limit.
func (s *Store) IssueRows(ctx context.Context, category IssueCategory, runID string, now time.Time, limit int) ([]IssueRow, error) {
	base := sq.Select("i.item_id", "i.title", "i.owner", "i.item_type", "COALESCE(i.url, '')",
		"i.modified_at", "h.status_code", "h.error_message", "h.checked_url").
		From("items_current i").
		LeftJoin("health_checks h ON h.item_id = i.item_id AND h.run_id = ?", runID).
		OrderBy("i.item_id")

	switch category {
	case IssueMissingTags:
		base = base.Where(sq.Eq{"COALESCE(i.tags_count, 0)": 0})
	case IssueMissingDescription:
		base = base.Where(sq.Eq{"COALESCE(i.has_description, 0)": 0})
	case IssueMissingExtent:
		base = base.Where(sq.Eq{"COALESCE(i.has_extent, 0)": 0})
	case IssueStale:
		base = base.Where(sq.Lt{"i.modified_at": toMillis(now.Add(-staleAfter))})
	case IssueBrokenService:
		base = base.Where(sq.Eq{"h.ok": 0})
	default:
		return nil, fmt.Errorf("unknown issue category %q", category)
	}
	if limit > 0 {
		base = base.Limit(uint64(limit))
	}

	query, args, err := base.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", category, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", category, err)
	}
	defer rows.Close()

	var issues []IssueRow
	for rows.Next() {
		var (
			row        IssueRow
			modifiedAt sql.NullInt64
			status     sql.NullInt64
			errMsg     sql.NullString
			checkedURL sql.NullString
		)
		if err := rows.Scan(&row.ItemID, &row.Title, &row.Owner, &row.ItemType, &row.URL,
			&modifiedAt, &status, &errMsg, &checkedURL); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", category, err)
		}
		row.ModifiedAt = fromMillisPtr(modifiedAt)
		if status.Valid {
			code := int(status.Int64)
			row.StatusCode = &code
		}
		row.ErrorMessage = errMsg.String
		row.CheckedURL = checkedURL.String
		issues = append(issues, row)
	}
	return issues, rows.Err()
}

// OwnerSummary rolls the issue categories up per owner, worst owners first.
func (s *Store) OwnerSummary(ctx context.Context, runID string, now time.Time, limit int) ([]OwnerRollup, error) {
	staleCutoff := toMillis(now.Add(-staleAfter))

	base := sq.Select(
		"i.owner",
		"count(*) AS total_items",
		"count(CASE WHEN COALESCE(i.tags_count, 0) = 0 THEN 1 END) AS missing_tags",
		"count(CASE WHEN COALESCE(i.has_description, 0) = 0 THEN 1 END) AS missing_description",
		"count(CASE WHEN i.modified_at < ? THEN 1 END) AS stale",
		"count(CASE WHEN h.ok = 0 THEN 1 END) AS broken_services",
	).From("items_current i").
		LeftJoin("health_checks h ON h.item_id = i.item_id AND h.run_id = ?", runID).
		GroupBy("i.owner").
		OrderBy("broken_services DESC", "missing_description DESC", "missing_tags DESC", "total_items DESC", "i.owner")
	if limit > 0 {
		base = base.Limit(uint64(limit))
	}

	query, args, err := base.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building owner summary query: %w", err)
	}
	// The stale cutoff placeholder precedes the join placeholder in the
	// generated SQL.
	args = append([]any{staleCutoff}, args...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying owner summary: %w", err)
	}
	defer rows.Close()

	var rollups []OwnerRollup
	for rows.Next() {
		var r OwnerRollup
		if err := rows.Scan(&r.Owner, &r.TotalItems, &r.MissingTags,
			&r.MissingDescription, &r.Stale, &r.BrokenServices); err != nil {
			return nil, fmt.Errorf("scanning owner summary row: %w", err)
		}
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}

// PreviousRunID returns the run started most recently before the target
// run, or an empty string when the target is the first run.
func (s *Store) PreviousRunID(ctx context.Context, runID string) (string, error) {
	var prev string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs
		 WHERE started_at < (SELECT started_at FROM runs WHERE run_id = ?)
		 ORDER BY started_at DESC LIMIT 1`, runID,
	).Scan(&prev)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding previous run: %w", err)
	}
	return prev, nil
}

// Changes lists items whose history gained an interval in the target run.
// An item is New when every interval it has was first seen in that run;
// anything else opened in the run is Modified. The classification is
// derived here, never stored.
func (s *Store) Changes(ctx context.Context, runID string, limit int) ([]ChangeRow, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	base := sq.Select("h.item_id", "h.title", "h.owner", "h.item_type",
		`CASE WHEN EXISTS (
			SELECT 1 FROM items_history h2
			WHERE h2.item_id = h.item_id AND h2.first_seen_run_id <> ?
		 ) THEN 'Modified' ELSE 'New' END AS change_type`).
		From("items_history h").
		Where(sq.Eq{"h.valid_from": toMillis(run.StartedAt)}).
		OrderBy("h.item_id")
	if limit > 0 {
		base = base.Limit(uint64(limit))
	}

	query, args, err := base.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building changes query: %w", err)
	}
	// The CASE placeholder precedes the WHERE placeholder.
	args = append([]any{runID}, args...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	var changes []ChangeRow
	for rows.Next() {
		var c ChangeRow
		if err := rows.Scan(&c.ItemID, &c.Title, &c.Owner, &c.ItemType, &c.ChangeType); err != nil {
			return nil, fmt.Errorf("scanning change row: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// RemediationRows joins every current item with the target run's score and
// health rows. Items the run never scored or probed come back with nil
// Score / HealthOK.
func (s *Store) RemediationRows(ctx context.Context, runID string) ([]RemediationRow, error) {
	query, args, err := sq.Select(
		"i.item_id", "i.title", "i.item_type", "i.owner", "COALESCE(i.url, '')",
		"i.modified_at", "COALESCE(i.tags_count, 0)", "COALESCE(i.has_description, 0)",
		"COALESCE(i.has_extent, 0)",
		"s.score", "h.ok", "h.status_code", "h.error_message", "h.checked_url",
	).From("items_current i").
		LeftJoin("quality_scores s ON s.item_id = i.item_id AND s.run_id = ?", runID).
		LeftJoin("health_checks h ON h.item_id = i.item_id AND h.run_id = ?", runID).
		OrderBy("i.item_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building remediation query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying remediation rows: %w", err)
	}
	defer rows.Close()

	var out []RemediationRow
	for rows.Next() {
		var (
			r          RemediationRow
			modifiedAt sql.NullInt64
			scoreVal   sql.NullInt64
			okVal      sql.NullBool
			status     sql.NullInt64
			errMsg     sql.NullString
			checkedURL sql.NullString
		)
		if err := rows.Scan(&r.ItemID, &r.Title, &r.ItemType, &r.Owner, &r.URL,
			&modifiedAt, &r.TagsCount, &r.HasDescription, &r.HasExtent,
			&scoreVal, &okVal, &status, &errMsg, &checkedURL); err != nil {
			return nil, fmt.Errorf("scanning remediation row: %w", err)
		}
		r.ModifiedAt = fromMillisPtr(modifiedAt)
		if scoreVal.Valid {
			v := int(scoreVal.Int64)
			r.Score = &v
		}
		if okVal.Valid {
			v := okVal.Bool
			r.HealthOK = &v
		}
		if status.Valid {
			v := int(status.Int64)
			r.StatusCode = &v
		}
		r.ErrorMessage = errMsg.String
		r.CheckedURL = checkedURL.String
		out = append(out, r)
	}
	return out, rows.Err()
}
