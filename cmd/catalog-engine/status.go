// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/catalog-engine/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check database health and summarize the latest run",
	Long: `Status verifies the catalog database schema and prints row counts for the
most recent run: items, quality scores, health checks, and broken services.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()

	s, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Status(context.Background())
	if err != nil {
		return err
	}

	if !st.OK() {
		return fmt.Errorf("database missing tables: %v", st.MissingTables)
	}
	fmt.Printf("Database: %s (schema OK)\n", cfg.Store.DBPath)

	if !st.HasRuns {
		fmt.Println("No runs yet. Take a snapshot first.")
		return nil
	}

	run := st.LatestRun
	fmt.Printf("Latest run: %s\n", run.RunID)
	fmt.Printf("  started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("  finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	} else {
		fmt.Println("  finished: (run still open)")
	}
	fmt.Printf("  items: %d, scores: %d, health checks: %d, broken services: %d\n",
		st.Items, st.Scores, st.HealthChecks, st.BrokenServices)
	return nil
}
