// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/catalog-engine/internal/report"
	"github.com/pdiddy/catalog-engine/internal/store"
)

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Build the prioritized remediation pack for a run",
	Long: `Remediate builds the cleanup pack for one snapshot run: a prioritized CSV
per issue category with the action owners should take, an owner summary,
and a YAML manifest listing the pack contents. Defaults to the most recent
run.`,
	RunE: runRemediate,
}

func init() {
	remediateCmd.Flags().String("run-id", "", "run to build the pack for (default: latest)")
	remediateCmd.Flags().String("out-dir", "", "output directory (default: reports)")
	remediateCmd.Flags().Bool("upload", false, "upload the pack to the configured SFTP drop")

	rootCmd.AddCommand(remediateCmd)
}

func runRemediate(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	outDir, _ := reportFlags(cmd, cfg.Report)

	s, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	runID, err := resolveRunID(cmd, s)
	if err != nil {
		return err
	}

	out, manifest, err := report.GeneratePack(context.Background(), s, runID, outDir, time.Now().UTC(), os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("\nRemediation pack: %d files for run %s\n", len(manifest.Files), runID)

	if upload, _ := cmd.Flags().GetBool("upload"); upload {
		paths := append(out.CSVPaths, out.ManifestPath)
		return uploadToDrop(cmd.Context(), cfg.SFTP, paths)
	}
	return nil
}
