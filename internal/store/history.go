// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// HistorySummary reports what one reconciliation did.
type HistorySummary struct {
	// Closed is the number of intervals ended because the item's hash changed.
	Closed int
	// Opened is the number of new intervals (brand-new items plus changed items).
	Opened int
	// Refreshed is the number of unchanged current intervals whose last-seen
	// marker advanced.
	Refreshed int
}

// ReconcileHistory reconciles items_history against the batch the given run
// just upserted into items_current. Three set-oriented statements run in
// one transaction:
//
//  1. close current intervals whose content hash differs from the batch
//     (valid_to = run start, is_current cleared);
//  2. advance last_seen_run_id on unchanged current intervals;
//  3. open intervals for items with no current row — brand-new identifiers
//     and the rows just closed — preserving first_seen_run_id from the
//     item's earliest interval when one exists.
//
// Items absent from the batch are untouched: absence is not evidence of a
// content change and never closes an interval. A hash that reverts to a
// prior value opens a new interval; closed rows are never reopened.
func (s *Store) ReconcileHistory(ctx context.Context, runID string, runStart time.Time) (HistorySummary, error) {
	startMs := toMillis(runStart)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	closed, err := execCount(ctx, tx,
		`UPDATE items_history SET valid_to = ?, is_current = 0
		 WHERE is_current = 1
		   AND item_id IN (SELECT item_id FROM items_current WHERE last_seen_run_id = ?)
		   AND content_hash <> (SELECT c.content_hash FROM items_current c WHERE c.item_id = items_history.item_id)`,
		startMs, runID,
	)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("closing changed intervals: %w", err)
	}

	refreshed, err := execCount(ctx, tx,
		`UPDATE items_history SET last_seen_run_id = ?
		 WHERE is_current = 1
		   AND item_id IN (SELECT item_id FROM items_current WHERE last_seen_run_id = ?)`,
		runID, runID,
	)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("refreshing unchanged intervals: %w", err)
	}

	opened, err := execCount(ctx, tx,
		`INSERT INTO items_history (
			item_id, content_hash, valid_from, valid_to, is_current,
			title, item_type, owner, url, access, modified_at,
			tags_json, description_len, has_extent,
			extent_xmin, extent_ymin, extent_xmax, extent_ymax,
			first_seen_run_id, last_seen_run_id
		)
		SELECT
			c.item_id, c.content_hash, ?, NULL, 1,
			c.title, c.item_type, c.owner, c.url, c.access, c.modified_at,
			c.tags_json, c.description_len, c.has_extent,
			c.extent_xmin, c.extent_ymin, c.extent_xmax, c.extent_ymax,
			COALESCE(
				(SELECT h2.first_seen_run_id FROM items_history h2
				 WHERE h2.item_id = c.item_id ORDER BY h2.valid_from LIMIT 1),
				?),
			?
		FROM items_current c
		LEFT JOIN items_history h ON h.item_id = c.item_id AND h.is_current = 1
		WHERE c.last_seen_run_id = ? AND h.item_id IS NULL`,
		startMs, runID, runID, runID,
	)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("opening new intervals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return HistorySummary{}, fmt.Errorf("committing history: %w", err)
	}
	return HistorySummary{Closed: closed, Opened: opened, Refreshed: refreshed}, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ItemHistory returns every interval for one item, oldest first.
func (s *Store) ItemHistory(ctx context.Context, itemID string) ([]types.ItemVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, content_hash, valid_from, valid_to, is_current,
			title, item_type, owner, url, access, modified_at,
			tags_json, description_len, has_extent,
			extent_xmin, extent_ymin, extent_xmax, extent_ymax,
			first_seen_run_id, last_seen_run_id
		 FROM items_history WHERE item_id = ? ORDER BY valid_from, is_current`, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", itemID, err)
	}
	defer rows.Close()

	var versions []types.ItemVersion
	for rows.Next() {
		var (
			v                   types.ItemVersion
			validFrom           int64
			validTo, modifiedAt sql.NullInt64
		)
		err := rows.Scan(&v.ItemID, &v.ContentHash, &validFrom, &validTo, &v.IsCurrent,
			&v.Title, &v.ItemType, &v.Owner, &v.URL, &v.Access, &modifiedAt,
			&v.TagsJSON, &v.DescriptionLen, &v.HasExtent,
			&v.ExtentXMin, &v.ExtentYMin, &v.ExtentXMax, &v.ExtentYMax,
			&v.FirstSeenRunID, &v.LastSeenRunID)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		v.ValidFrom = fromMillis(validFrom)
		v.ValidTo = fromMillisPtr(validTo)
		v.ModifiedAt = fromMillisPtr(modifiedAt)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return versions, nil
}

// CurrentVersion returns the open interval for one item, or sql.ErrNoRows
// wrapped when the item has no history.
func (s *Store) CurrentVersion(ctx context.Context, itemID string) (types.ItemVersion, error) {
	versions, err := s.ItemHistory(ctx, itemID)
	if err != nil {
		return types.ItemVersion{}, err
	}
	for _, v := range versions {
		if v.IsCurrent {
			return v, nil
		}
	}
	return types.ItemVersion{}, fmt.Errorf("no current version for %s: %w", itemID, sql.ErrNoRows)
}
