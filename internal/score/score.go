// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score assesses the metadata quality of canonical items.
package score

import (
	"time"
	"unicode/utf8"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// Point values per criterion. The full table sums to exactly 100.
const (
	pointsDescription = 20
	pointsTags        = 15
	pointsExtent      = 15
	pointsThumbnail   = 5
	pointsSnippet     = 5
	pointsTitle       = 5
	pointsFreshness   = 20
	pointsURL         = 10

	freshnessWindow = 180 * 24 * time.Hour

	minTagsForCredit = 3
	minSnippetLen    = 20
	maxSnippetLen    = 200
	minTitleLen      = 10
	maxTitleLen      = 120
)

// Item scores one item at a fixed reference time and returns the score, a
// breakdown of points awarded per criterion, and the missing-signal list.
// The function does no I/O and is deterministic for a given (item, now).
//
// The missing list only collects description, tags, and thumbnail: those
// are the signals remediation workflows act on. Failed freshness, extent,
// and URL criteria are visible through the breakdown alone.
func Item(item types.CanonicalItem, now time.Time) (int, map[string]int, []string) {
	total := 0
	breakdown := make(map[string]int)
	missing := []string{}

	if item.HasDescription {
		total += pointsDescription
		breakdown["has_description"] = pointsDescription
	} else {
		missing = append(missing, "description")
	}

	if item.TagsCount >= minTagsForCredit {
		total += pointsTags
		breakdown["tags_count"] = pointsTags
	}
	if item.TagsCount == 0 {
		missing = append(missing, "tags")
	}

	if item.HasExtent {
		total += pointsExtent
		breakdown["has_extent"] = pointsExtent
	}

	if item.HasThumbnail {
		total += pointsThumbnail
		breakdown["has_thumbnail"] = pointsThumbnail
	} else {
		missing = append(missing, "thumbnail")
	}

	if item.SnippetLen >= minSnippetLen && item.SnippetLen <= maxSnippetLen {
		total += pointsSnippet
		breakdown["snippet_len"] = pointsSnippet
	}

	// Character count, so non-Latin titles hit the same boundaries as ASCII.
	if n := utf8.RuneCountInString(item.Title); n >= minTitleLen && n <= maxTitleLen {
		total += pointsTitle
		breakdown["title_len"] = pointsTitle
	}

	if item.ModifiedAt != nil && now.Sub(*item.ModifiedAt) <= freshnessWindow {
		total += pointsFreshness
		breakdown["freshness"] = pointsFreshness
	}

	if item.URL != "" {
		total += pointsURL
		breakdown["url"] = pointsURL
	}

	return clamp(total), breakdown, missing
}

// Batch scores every item in the batch for the given run.
func Batch(items []types.CanonicalItem, runID string, now time.Time) []types.QualityScore {
	scores := make([]types.QualityScore, 0, len(items))
	for _, item := range items {
		total, breakdown, missing := Item(item, now)
		scores = append(scores, types.QualityScore{
			RunID:      runID,
			ItemID:     item.ItemID,
			Score:      total,
			Breakdown:  breakdown,
			Missing:    missing,
			ComputedAt: now.UTC(),
		})
	}
	return scores
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
