// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders catalog health reports and remediation packs from
// a snapshot run: a markdown document for archival plus CSV exports for
// spreadsheet triage.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/catalog-engine/internal/store"
)

const defaultRowLimit = 10

// Output lists the files one generation produced.
type Output struct {
	MarkdownPath string
	ManifestPath string
	CSVPaths     []string
}

// Generate renders the catalog health report for one run: a markdown
// document plus one CSV per issue category and an owner summary. Markdown
// tables are capped at rowLimit rows; CSV exports never are.
func Generate(ctx context.Context, s *store.Store, runID, outDir string, rowLimit int, now time.Time, w io.Writer) (Output, error) {
	if rowLimit <= 0 {
		rowLimit = defaultRowLimit
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("creating report directory: %w", err)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return Output{}, err
	}

	dateStr := run.StartedAt.Format("2006-01-02")
	base := filepath.Join(outDir, fmt.Sprintf("catalog_health_%s_%s", dateStr, shortID(runID)))
	out := Output{MarkdownPath: base + ".md"}

	var md strings.Builder
	fmt.Fprintf(&md, "# Catalog Health Report: %s\n\n", dateStr)
	fmt.Fprintf(&md, "**Run ID:** `%s`\n\n", runID)
	fmt.Fprintf(&md, "**Started:** %s\n\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(&md, "**Finished:** %s\n\n", run.FinishedAt.Format(time.RFC3339))
	}

	summary, err := s.RunSummary(ctx, runID)
	if err != nil {
		return Output{}, err
	}
	md.WriteString("## Snapshot Summary\n\n")
	writeTable(&md,
		[]string{"total_items", "scored_items", "checked_urls"},
		[][]string{{strconv.Itoa(summary.TotalItems), strconv.Itoa(summary.ScoredItems), strconv.Itoa(summary.CheckedURLs)}})

	stats, err := s.QualityStats(ctx, runID)
	if err != nil {
		return Output{}, err
	}
	md.WriteString("## Quality Stats\n\n")
	writeTable(&md,
		[]string{"avg_score", "min_score", "max_score", "high_quality", "low_quality"},
		[][]string{{
			fmt.Sprintf("%.1f", stats.AvgScore),
			strconv.Itoa(stats.MinScore), strconv.Itoa(stats.MaxScore),
			strconv.Itoa(stats.HighQuality), strconv.Itoa(stats.LowQuality),
		}})

	md.WriteString("## Top Issues\n\n")
	for _, category := range store.Categories {
		rows, err := s.IssueRows(ctx, category, runID, now, 0)
		if err != nil {
			return Output{}, err
		}

		fmt.Fprintf(&md, "### %s\n\n", titleCase(string(category)))
		headers, table := issueTable(category, rows)
		if len(table) > rowLimit {
			writeTable(&md, headers, table[:rowLimit])
			fmt.Fprintf(&md, "_%d of %d rows shown._\n\n", rowLimit, len(table))
		} else {
			writeTable(&md, headers, table)
		}

		csvPath := fmt.Sprintf("%s_%s.csv", base, category)
		if err := writeCSV(csvPath, headers, table); err != nil {
			return Output{}, err
		}
		out.CSVPaths = append(out.CSVPaths, csvPath)
		fmt.Fprintf(w, "wrote %s (%d rows)\n", csvPath, len(table))
	}

	rollups, err := s.OwnerSummary(ctx, runID, now, 20)
	if err != nil {
		return Output{}, err
	}
	md.WriteString("## Owner Summary (Top 20)\n\n")
	ownerHeaders := []string{"owner", "total_items", "missing_tags", "missing_description", "stale", "broken_services"}
	var ownerTable [][]string
	for _, r := range rollups {
		ownerTable = append(ownerTable, []string{
			r.Owner, strconv.Itoa(r.TotalItems), strconv.Itoa(r.MissingTags),
			strconv.Itoa(r.MissingDescription), strconv.Itoa(r.Stale), strconv.Itoa(r.BrokenServices),
		})
	}
	writeTable(&md, ownerHeaders, ownerTable)

	ownerCSV := base + "_owner_summary.csv"
	if err := writeCSV(ownerCSV, ownerHeaders, ownerTable); err != nil {
		return Output{}, err
	}
	out.CSVPaths = append(out.CSVPaths, ownerCSV)
	fmt.Fprintf(w, "wrote %s (%d rows)\n", ownerCSV, len(ownerTable))

	md.WriteString("## Changes Since Previous Run\n\n")
	prevRun, err := s.PreviousRunID(ctx, runID)
	if err != nil {
		return Output{}, err
	}
	if prevRun == "" {
		md.WriteString("_No previous run to compare._\n\n")
	} else {
		changes, err := s.Changes(ctx, runID, 20)
		if err != nil {
			return Output{}, err
		}
		var changeTable [][]string
		for _, c := range changes {
			changeTable = append(changeTable, []string{c.ItemID, c.Title, c.Owner, c.ItemType, c.ChangeType})
		}
		writeTable(&md, []string{"item_id", "title", "owner", "item_type", "change_type"}, changeTable)
	}

	if err := os.WriteFile(out.MarkdownPath, []byte(md.String()), 0o644); err != nil {
		return Output{}, fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(w, "report generated: %s\n", out.MarkdownPath)
	return out, nil
}

// issueTable flattens issue rows into header/cell form. Health-driven rows
// carry the probe detail columns.
func issueTable(category store.IssueCategory, rows []store.IssueRow) ([]string, [][]string) {
	if category == store.IssueBrokenService {
		headers := []string{"item_id", "title", "owner", "checked_url", "status_code", "error_message"}
		var table [][]string
		for _, r := range rows {
			status := ""
			if r.StatusCode != nil {
				status = strconv.Itoa(*r.StatusCode)
			}
			table = append(table, []string{r.ItemID, r.Title, r.Owner, r.CheckedURL, status, r.ErrorMessage})
		}
		return headers, table
	}

	headers := []string{"item_id", "title", "owner", "item_type", "modified_at"}
	var table [][]string
	for _, r := range rows {
		modified := ""
		if r.ModifiedAt != nil {
			modified = r.ModifiedAt.Format(time.RFC3339)
		}
		table = append(table, []string{r.ItemID, r.Title, r.Owner, r.ItemType, modified})
	}
	return headers, table
}

// writeTable renders a markdown pipe table, or a placeholder when empty.
func writeTable(md *strings.Builder, headers []string, rows [][]string) {
	if len(rows) == 0 {
		md.WriteString("_No rows found._\n\n")
		return
	}
	fmt.Fprintf(md, "| %s |\n", strings.Join(headers, " | "))
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(md, "| %s |\n", strings.Join(seps, " | "))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", "\\|")
		}
		fmt.Fprintf(md, "| %s |\n", strings.Join(cells, " | "))
	}
	md.WriteString("\n")
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// titleCase turns an issue category name into a section heading
// ("missing_tags" becomes "Missing Tags").
func titleCase(category string) string {
	words := strings.Split(category, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}
