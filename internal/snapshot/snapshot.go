// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot orchestrates one catalog snapshot run: fetch, normalize,
// upsert, then the optional history, scoring, and health stages, with the
// run record finalized on both success and controlled failure.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/catalog-engine/internal/catalog"
	"github.com/pdiddy/catalog-engine/internal/health"
	"github.com/pdiddy/catalog-engine/internal/portal"
	"github.com/pdiddy/catalog-engine/internal/score"
	"github.com/pdiddy/catalog-engine/internal/store"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

// Prober checks service URLs. The health package provides the real one.
type Prober interface {
	CheckAll(ctx context.Context, runID string, targets []health.Target) []types.HealthCheckResult
}

// Pipeline wires the stages of a snapshot run together.
type Pipeline struct {
	Store    *store.Store
	Searcher portal.Searcher
	Prober   Prober
}

// Result summarizes one snapshot run.
type Result struct {
	RunID    string
	Fetched  int
	Skipped  int
	Upserted int
	History  store.HistorySummary
	Scored   int
	Checked  int
	Broken   int
	Duration time.Duration
}

// Run executes one snapshot. The run record is created before any portal
// traffic and finalized exactly once: on success, on an empty catalog, and
// on stage failure alike.
func (p *Pipeline) Run(ctx context.Context, cfg types.PipelineConfig, w io.Writer) (Result, error) {
	startedAt := time.Now().UTC()
	run := types.Run{
		RunID:           uuid.NewString(),
		StartedAt:       startedAt,
		Source:          "portal",
		PortalURL:       cfg.Portal.URL,
		OrgID:           cfg.Portal.OrgID,
		TriggeredBy:     cfg.Snapshot.TriggeredBy,
		PipelineVersion: cfg.Snapshot.PipelineVersion,
	}
	if err := p.Store.CreateRun(ctx, run); err != nil {
		return Result{}, err
	}
	result := Result{RunID: run.RunID}

	// finish closes the run record; fail does so before surfacing a stage
	// error, so interrupted runs never stay open.
	finish := func() error {
		finishedAt := time.Now().UTC()
		result.Duration = finishedAt.Sub(startedAt)
		return p.Store.FinishRun(ctx, run.RunID, finishedAt)
	}
	fail := func(stage string, err error) (Result, error) {
		if finishErr := finish(); finishErr != nil {
			fmt.Fprintf(w, "warning: closing run record: %v\n", finishErr)
		}
		return result, fmt.Errorf("%s: %w", stage, err)
	}

	fmt.Fprintf(w, "run %s: fetching items from %s\n", run.RunID, cfg.Portal.URL)
	raw, err := p.Searcher.Search(ctx, cfg.Snapshot, w)
	if err != nil {
		return fail("fetching items", err)
	}
	result.Fetched = len(raw)

	items := make([]types.CanonicalItem, 0, len(raw))
	for _, r := range raw {
		item, err := catalog.Normalize(r, run.RunID, startedAt)
		if err != nil {
			fmt.Fprintf(w, "warning: skipping item: %v\n", err)
			result.Skipped++
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		fmt.Fprintf(w, "run %s: no items to snapshot\n", run.RunID)
		if err := finish(); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := p.Store.UpsertItems(ctx, items); err != nil {
		return fail("upserting items", err)
	}
	result.Upserted = len(items)
	fmt.Fprintf(w, "run %s: upserted %d items (%d skipped)\n", run.RunID, result.Upserted, result.Skipped)

	if cfg.Snapshot.EnableHistory {
		summary, err := p.Store.ReconcileHistory(ctx, run.RunID, startedAt)
		if err != nil {
			return fail("reconciling history", err)
		}
		result.History = summary
		fmt.Fprintf(w, "run %s: history closed=%d opened=%d refreshed=%d\n",
			run.RunID, summary.Closed, summary.Opened, summary.Refreshed)
	}

	if cfg.Snapshot.EnableScores {
		scores := score.Batch(items, run.RunID, time.Now().UTC())
		if err := p.Store.InsertScores(ctx, scores); err != nil {
			return fail("recording scores", err)
		}
		result.Scored = len(scores)
		fmt.Fprintf(w, "run %s: scored %d items\n", run.RunID, result.Scored)
	}

	if cfg.Snapshot.EnableHealth {
		var targets []health.Target
		for _, item := range items {
			if item.URL != "" {
				targets = append(targets, health.Target{ItemID: item.ItemID, URL: item.URL})
			}
		}
		results := p.Prober.CheckAll(ctx, run.RunID, targets)
		if err := p.Store.InsertHealthChecks(ctx, results); err != nil {
			return fail("recording health checks", err)
		}
		result.Checked = len(results)
		for _, r := range results {
			if !r.OK {
				result.Broken++
			}
		}
		fmt.Fprintf(w, "run %s: checked %d URLs (%d broken)\n", run.RunID, result.Checked, result.Broken)
	}

	if err := finish(); err != nil {
		return result, err
	}
	fmt.Fprintf(w, "run %s: finished in %s\n", run.RunID, result.Duration.Round(time.Millisecond))
	return result, nil
}
