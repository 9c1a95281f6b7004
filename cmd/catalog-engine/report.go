// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/catalog-engine/internal/report"
	"github.com/pdiddy/catalog-engine/internal/secrets"
	"github.com/pdiddy/catalog-engine/internal/sftpclient"
	"github.com/pdiddy/catalog-engine/internal/store"
	"github.com/pdiddy/catalog-engine/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the catalog health report for a run",
	Long: `Report renders the archival markdown health report for one snapshot run,
plus one CSV per issue category and an owner summary. Defaults to the most
recent run.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("run-id", "", "run to report on (default: latest)")
	reportCmd.Flags().String("out-dir", "", "output directory (default: reports)")
	reportCmd.Flags().Int("row-limit", 0, "rows per issue table in the markdown document")
	reportCmd.Flags().Bool("upload", false, "upload generated files to the configured SFTP drop")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	outDir, rowLimit := reportFlags(cmd, cfg.Report)

	s, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	runID, err := resolveRunID(cmd, s)
	if err != nil {
		return err
	}

	out, err := report.Generate(context.Background(), s, runID, outDir, rowLimit, time.Now().UTC(), os.Stdout)
	if err != nil {
		return err
	}

	if upload, _ := cmd.Flags().GetBool("upload"); upload {
		paths := append([]string{out.MarkdownPath}, out.CSVPaths...)
		return uploadToDrop(cmd.Context(), cfg.SFTP, paths)
	}
	return nil
}

// reportFlags resolves output settings with flags winning over config.
func reportFlags(cmd *cobra.Command, cfg types.ReportConfig) (outDir string, rowLimit int) {
	outDir, _ = cmd.Flags().GetString("out-dir")
	if outDir == "" {
		outDir = cfg.OutDir
	}
	rowLimit, _ = cmd.Flags().GetInt("row-limit")
	if rowLimit <= 0 {
		rowLimit = cfg.RowLimit
	}
	return outDir, rowLimit
}

// resolveRunID returns the --run-id flag or falls back to the latest run.
func resolveRunID(cmd *cobra.Command, s *store.Store) (string, error) {
	runID, _ := cmd.Flags().GetString("run-id")
	if runID != "" {
		return runID, nil
	}
	runID, err := s.LatestRunID(context.Background())
	if err != nil {
		return "", err
	}
	if runID == "" {
		return "", fmt.Errorf("no runs found: take a snapshot first")
	}
	return runID, nil
}

// uploadToDrop pushes generated files to the configured SFTP drop.
func uploadToDrop(ctx context.Context, cfg types.SFTPConfig, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return sftpclient.UploadFiles(ctx, sftpclient.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		User:      cfg.User,
		Password:  secretDefault(secrets.KeySFTPPassword, cfg.Password),
		RemoteDir: cfg.RemoteDir,
	}, paths, os.Stdout)
}
