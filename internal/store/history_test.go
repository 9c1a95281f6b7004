// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// runBatch replays one run end to end against history: the run record, the
// current-state upsert, then reconciliation.
func runBatch(t *testing.T, s *Store, runID string, startedAt time.Time, items ...types.CanonicalItem) HistorySummary {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateRun(ctx, testRun(runID, startedAt)))
	require.NoError(t, s.UpsertItems(ctx, items))
	summary, err := s.ReconcileHistory(ctx, runID, startedAt)
	require.NoError(t, err)
	return summary
}

func TestReconcileHistoryNewItem(t *testing.T) {
	s := openTestStore(t)

	summary := runBatch(t, s, "run-1", testEpoch, testItem("a", "hash-1", "run-1", testEpoch))
	assert.Equal(t, HistorySummary{Closed: 0, Opened: 1, Refreshed: 0}, summary)

	versions, err := s.ItemHistory(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	v := versions[0]
	assert.Equal(t, "hash-1", v.ContentHash)
	assert.Equal(t, testEpoch, v.ValidFrom)
	assert.Nil(t, v.ValidTo)
	assert.True(t, v.IsCurrent)
	assert.Equal(t, "run-1", v.FirstSeenRunID)
	assert.Equal(t, "run-1", v.LastSeenRunID)
}

func TestReconcileHistoryUnchangedItem(t *testing.T) {
	s := openTestStore(t)
	run2Start := testEpoch.Add(24 * time.Hour)

	runBatch(t, s, "run-1", testEpoch, testItem("a", "hash-1", "run-1", testEpoch))
	summary := runBatch(t, s, "run-2", run2Start, testItem("a", "hash-1", "run-2", run2Start))
	assert.Equal(t, HistorySummary{Closed: 0, Opened: 0, Refreshed: 1}, summary)

	// Still exactly one interval; only the last-seen marker moved.
	versions, err := s.ItemHistory(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	v := versions[0]
	assert.True(t, v.IsCurrent)
	assert.Equal(t, testEpoch, v.ValidFrom)
	assert.Nil(t, v.ValidTo)
	assert.Equal(t, "run-1", v.FirstSeenRunID)
	assert.Equal(t, "run-2", v.LastSeenRunID)
}

func TestReconcileHistoryChangedItem(t *testing.T) {
	s := openTestStore(t)
	run2Start := testEpoch.Add(24 * time.Hour)

	runBatch(t, s, "run-1", testEpoch, testItem("a", "hash-1", "run-1", testEpoch))

	changed := testItem("a", "hash-2", "run-2", run2Start)
	changed.Title = "Road Centerlines (updated)"
	summary := runBatch(t, s, "run-2", run2Start, changed)
	assert.Equal(t, HistorySummary{Closed: 1, Opened: 1, Refreshed: 0}, summary)

	versions, err := s.ItemHistory(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, versions, 2)

	old, current := versions[0], versions[1]
	assert.Equal(t, "hash-1", old.ContentHash)
	assert.False(t, old.IsCurrent)
	require.NotNil(t, old.ValidTo)
	assert.Equal(t, run2Start, *old.ValidTo)

	assert.Equal(t, "hash-2", current.ContentHash)
	assert.True(t, current.IsCurrent)
	assert.Equal(t, run2Start, current.ValidFrom)
	assert.Nil(t, current.ValidTo)
	assert.Equal(t, "Road Centerlines (updated)", current.Title)

	// The old interval's end meets the new interval's start exactly.
	assert.Equal(t, *old.ValidTo, current.ValidFrom)

	// First-seen provenance survives the content change.
	assert.Equal(t, "run-1", current.FirstSeenRunID)
	assert.Equal(t, "run-2", current.LastSeenRunID)
}

func TestReconcileHistoryAbsenceKeepsIntervalOpen(t *testing.T) {
	s := openTestStore(t)
	run2Start := testEpoch.Add(24 * time.Hour)

	runBatch(t, s, "run-1", testEpoch,
		testItem("a", "hash-a", "run-1", testEpoch),
		testItem("b", "hash-b", "run-1", testEpoch))

	// Item b disappears from the second batch.
	summary := runBatch(t, s, "run-2", run2Start, testItem("a", "hash-a", "run-2", run2Start))
	assert.Equal(t, HistorySummary{Closed: 0, Opened: 0, Refreshed: 1}, summary)

	v, err := s.CurrentVersion(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, v.IsCurrent)
	assert.Nil(t, v.ValidTo)
	assert.Equal(t, "run-1", v.LastSeenRunID)
}

func TestReconcileHistoryRevertedHashOpensNewInterval(t *testing.T) {
	s := openTestStore(t)
	run2Start := testEpoch.Add(24 * time.Hour)
	run3Start := testEpoch.Add(48 * time.Hour)

	runBatch(t, s, "run-1", testEpoch, testItem("a", "hash-1", "run-1", testEpoch))
	runBatch(t, s, "run-2", run2Start, testItem("a", "hash-2", "run-2", run2Start))
	summary := runBatch(t, s, "run-3", run3Start, testItem("a", "hash-1", "run-3", run3Start))
	assert.Equal(t, HistorySummary{Closed: 1, Opened: 1, Refreshed: 0}, summary)

	// The reverted hash gets a fresh interval; the original is not reopened.
	versions, err := s.ItemHistory(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.False(t, versions[0].IsCurrent)
	assert.False(t, versions[1].IsCurrent)
	assert.True(t, versions[2].IsCurrent)
	assert.Equal(t, "hash-1", versions[2].ContentHash)
	assert.Equal(t, run3Start, versions[2].ValidFrom)
	assert.Equal(t, "run-1", versions[2].FirstSeenRunID)
}

func TestReconcileHistoryMixedBatch(t *testing.T) {
	s := openTestStore(t)
	run2Start := testEpoch.Add(24 * time.Hour)

	runBatch(t, s, "run-1", testEpoch,
		testItem("unchanged", "hash-u", "run-1", testEpoch),
		testItem("changed", "hash-c1", "run-1", testEpoch))

	summary := runBatch(t, s, "run-2", run2Start,
		testItem("unchanged", "hash-u", "run-2", run2Start),
		testItem("changed", "hash-c2", "run-2", run2Start),
		testItem("brand-new", "hash-n", "run-2", run2Start))
	assert.Equal(t, HistorySummary{Closed: 1, Opened: 2, Refreshed: 1}, summary)
}

func TestReconcileHistoryIdempotentReplay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runBatch(t, s, "run-1", testEpoch, testItem("a", "hash-1", "run-1", testEpoch))

	// Replaying the same reconciliation finds nothing to close or open.
	summary, err := s.ReconcileHistory(ctx, "run-1", testEpoch)
	require.NoError(t, err)
	assert.Equal(t, HistorySummary{Closed: 0, Opened: 0, Refreshed: 1}, summary)

	versions, err := s.ItemHistory(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestCurrentVersionMissingItem(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CurrentVersion(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
