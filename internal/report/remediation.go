// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/catalog-engine/internal/store"
)

// Remediation actions, one per issue category in the pack.
const (
	ActionAddTags        = "ADD_TAGS"
	ActionAddDescription = "ADD_DESCRIPTION"
	ActionReviewStale    = "REVIEW_STALE"
	ActionFixServiceURL  = "FIX_SERVICE_URL"
)

// packCategories lists the issue categories that get a remediation CSV, in
// output order, with the action owners should take.
var packCategories = []struct {
	category store.IssueCategory
	action   string
	weight   int
}{
	{store.IssueMissingTags, ActionAddTags, 10},
	{store.IssueMissingDescription, ActionAddDescription, 15},
	{store.IssueStale, ActionReviewStale, 10},
	{store.IssueBrokenService, ActionFixServiceURL, 30},
}

// Manifest describes one generated remediation pack.
type Manifest struct {
	RunID       string         `yaml:"run_id"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Files       []ManifestFile `yaml:"files"`
}

// ManifestFile is one CSV inside the pack.
type ManifestFile struct {
	Name string `yaml:"name"`
	Rows int    `yaml:"rows"`
}

// Priority ranks a remediation row. A deficit from a perfect quality score
// forms the base (50 when the run never scored the item) and the category
// weight is added on top, clamped to 0..100.
func Priority(score *int, weight int) int {
	base := 50
	if score != nil {
		base = 100 - *score
	}
	p := base + weight
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// GeneratePack writes one prioritized CSV per issue category, an owner
// summary, and a YAML manifest into outDir. Rows sort by priority, highest
// first, with item id as the tiebreak.
func GeneratePack(ctx context.Context, s *store.Store, runID, outDir string, now time.Time, w io.Writer) (Output, Manifest, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Output{}, Manifest{}, fmt.Errorf("creating report directory: %w", err)
	}

	rows, err := s.RemediationRows(ctx, runID)
	if err != nil {
		return Output{}, Manifest{}, err
	}

	dateStr := now.Format("2006-01-02")
	manifest := Manifest{RunID: runID, GeneratedAt: now.UTC()}
	var out Output

	staleCutoff := now.Add(-2 * 365 * 24 * time.Hour)
	for _, pc := range packCategories {
		var matched []store.RemediationRow
		for _, r := range rows {
			if matchesCategory(r, pc.category, staleCutoff) {
				matched = append(matched, r)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			pi := Priority(matched[i].Score, pc.weight)
			pj := Priority(matched[j].Score, pc.weight)
			if pi != pj {
				return pi > pj
			}
			return matched[i].ItemID < matched[j].ItemID
		})

		headers, table := packTable(pc.category, pc.action, pc.weight, matched)
		name := fmt.Sprintf("remediation_%s_%s.csv", dateStr, pc.category)
		path := filepath.Join(outDir, name)
		if err := writeCSV(path, headers, table); err != nil {
			return Output{}, Manifest{}, err
		}
		out.CSVPaths = append(out.CSVPaths, path)
		manifest.Files = append(manifest.Files, ManifestFile{Name: name, Rows: len(table)})
		fmt.Fprintf(w, "wrote %s (%d rows)\n", path, len(table))
	}

	rollups, err := s.OwnerSummary(ctx, runID, now, 0)
	if err != nil {
		return Output{}, Manifest{}, err
	}
	ownerHeaders := []string{"owner", "total_items", "missing_tags_count", "missing_description_count", "stale_items_count", "broken_services_count"}
	var ownerTable [][]string
	for _, r := range rollups {
		ownerTable = append(ownerTable, []string{
			r.Owner, strconv.Itoa(r.TotalItems), strconv.Itoa(r.MissingTags),
			strconv.Itoa(r.MissingDescription), strconv.Itoa(r.Stale), strconv.Itoa(r.BrokenServices),
		})
	}
	ownerName := fmt.Sprintf("remediation_%s_owner_summary.csv", dateStr)
	ownerPath := filepath.Join(outDir, ownerName)
	if err := writeCSV(ownerPath, ownerHeaders, ownerTable); err != nil {
		return Output{}, Manifest{}, err
	}
	out.CSVPaths = append(out.CSVPaths, ownerPath)
	manifest.Files = append(manifest.Files, ManifestFile{Name: ownerName, Rows: len(ownerTable)})
	fmt.Fprintf(w, "wrote %s (%d rows)\n", ownerPath, len(ownerTable))

	manifestPath := filepath.Join(outDir, fmt.Sprintf("remediation_%s_manifest.yaml", dateStr))
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return Output{}, Manifest{}, fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return Output{}, Manifest{}, fmt.Errorf("writing manifest: %w", err)
	}
	out.ManifestPath = manifestPath
	fmt.Fprintf(w, "remediation pack generated: %s\n", manifestPath)
	return out, manifest, nil
}

func matchesCategory(r store.RemediationRow, category store.IssueCategory, staleCutoff time.Time) bool {
	switch category {
	case store.IssueMissingTags:
		return r.TagsCount == 0
	case store.IssueMissingDescription:
		return !r.HasDescription
	case store.IssueStale:
		return r.ModifiedAt != nil && r.ModifiedAt.Before(staleCutoff)
	case store.IssueBrokenService:
		return r.HealthOK != nil && !*r.HealthOK
	}
	return false
}

func packTable(category store.IssueCategory, action string, weight int, rows []store.RemediationRow) ([]string, [][]string) {
	headers := []string{"item_id", "title", "item_type", "owner", "priority", "recommended_action", "url", "quality_score", "modified_at"}
	broken := category == store.IssueBrokenService
	if broken {
		headers = append(headers, "status_code", "error_message", "checked_url")
	}

	var table [][]string
	for _, r := range rows {
		score := ""
		if r.Score != nil {
			score = strconv.Itoa(*r.Score)
		}
		modified := ""
		if r.ModifiedAt != nil {
			modified = r.ModifiedAt.Format(time.RFC3339)
		}
		row := []string{
			r.ItemID, r.Title, r.ItemType, r.Owner,
			strconv.Itoa(Priority(r.Score, weight)), action, r.URL, score, modified,
		}
		if broken {
			status := ""
			if r.StatusCode != nil {
				status = strconv.Itoa(*r.StatusCode)
			}
			row = append(row, status, r.ErrorMessage, r.CheckedURL)
		}
		table = append(table, row)
	}
	return headers, table
}
