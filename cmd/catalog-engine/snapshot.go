// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/catalog-engine/internal/health"
	"github.com/pdiddy/catalog-engine/internal/portal"
	"github.com/pdiddy/catalog-engine/internal/secrets"
	"github.com/pdiddy/catalog-engine/internal/snapshot"
	"github.com/pdiddy/catalog-engine/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take a point-in-time snapshot of the portal catalog",
	Long: `Snapshot fetches item metadata from the portal, normalizes it, and records
a new run: current state is upserted, item history is reconciled, metadata
quality is scored, and service URLs are probed. The history, scoring, and
health stages can each be disabled independently.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().Int("max-items", 0, "maximum items to fetch (0 = configured default)")
	snapshotCmd.Flags().String("query", "", "portal search query (default: public items in the configured org)")
	snapshotCmd.Flags().String("query-file", "", "YAML file with a saved query (overrides --query)")
	snapshotCmd.Flags().StringSlice("types", nil, "restrict to item types (e.g. \"Feature Service,Web Map\")")
	snapshotCmd.Flags().Bool("no-history", false, "skip history reconciliation")
	snapshotCmd.Flags().Bool("no-scores", false, "skip quality scoring")
	snapshotCmd.Flags().Bool("no-health", false, "skip URL health checks")
	snapshotCmd.Flags().String("triggered-by", "manual", "what started this run (recorded on the run)")

	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	if maxItems, _ := cmd.Flags().GetInt("max-items"); maxItems > 0 {
		cfg.Snapshot.MaxItems = maxItems
	}
	if query, _ := cmd.Flags().GetString("query"); query != "" {
		cfg.Snapshot.Query = query
	}
	if itemTypes, _ := cmd.Flags().GetStringSlice("types"); len(itemTypes) > 0 {
		cfg.Snapshot.ItemTypes = itemTypes
	}
	if queryFile, _ := cmd.Flags().GetString("query-file"); queryFile != "" {
		qf, err := portal.ReadQueryFile(queryFile)
		if err != nil {
			return err
		}
		if qf.Query != "" {
			cfg.Snapshot.Query = qf.Query
		}
		if len(qf.ItemTypes) > 0 {
			cfg.Snapshot.ItemTypes = qf.ItemTypes
		}
		if qf.MaxItems > 0 {
			cfg.Snapshot.MaxItems = qf.MaxItems
		}
	}
	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		cfg.Snapshot.EnableHistory = false
	}
	if noScores, _ := cmd.Flags().GetBool("no-scores"); noScores {
		cfg.Snapshot.EnableScores = false
	}
	if noHealth, _ := cmd.Flags().GetBool("no-health"); noHealth {
		cfg.Snapshot.EnableHealth = false
	}
	cfg.Snapshot.TriggeredBy, _ = cmd.Flags().GetString("triggered-by")

	s, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	token := secretDefault(secrets.KeyPortalToken, cfg.Portal.Token)
	pipeline := &snapshot.Pipeline{
		Store:    s,
		Searcher: portal.New(&http.Client{Timeout: cfg.Portal.Timeout}, cfg.Portal, token),
		Prober:   health.New(&http.Client{Timeout: cfg.Health.Timeout}, cfg.Health),
	}

	result, err := pipeline.Run(context.Background(), cfg, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("\nSnapshot summary: run %s, %d fetched, %d upserted, %d skipped",
		result.RunID, result.Fetched, result.Upserted, result.Skipped)
	if cfg.Snapshot.EnableScores {
		fmt.Printf(", %d scored", result.Scored)
	}
	if cfg.Snapshot.EnableHealth {
		fmt.Printf(", %d checked (%d broken)", result.Checked, result.Broken)
	}
	fmt.Println()
	return nil
}
