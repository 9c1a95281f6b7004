// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog normalizes raw portal records into canonical item
// snapshots and computes their content hashes.
package catalog

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// Sentinel defaults so scoring and grouping never branch on nullability.
const (
	DefaultTitle = "Untitled"
	DefaultOwner = "Unknown"
	DefaultType  = "Unknown"
)

// ErrMissingIdentifier marks a record with an empty item identifier. Such
// records cannot be keyed and are skipped by the caller.
var ErrMissingIdentifier = errors.New("record has no item identifier")

// Normalize converts one raw portal record into a CanonicalItem tagged with
// the active run. Malformed fields degrade to their documented absent or
// default values; the only rejection is a missing identifier.
func Normalize(raw types.RawItem, runID string, now time.Time) (types.CanonicalItem, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return types.CanonicalItem{}, ErrMissingIdentifier
	}

	item := types.CanonicalItem{
		ItemID:   raw.ID,
		Title:    fallback(raw.Title, DefaultTitle),
		ItemType: fallback(raw.Type, DefaultType),
		Owner:    fallback(raw.Owner, DefaultOwner),
		URL:      raw.URL,
		Access:   raw.Access,

		CreatedAt:  raw.Created.Time(),
		ModifiedAt: raw.Modified.Time(),

		Tags:      raw.Tags,
		TagsCount: len(raw.Tags),

		// Lengths are character counts, not byte counts: non-Latin
		// metadata must hit the same boundaries as ASCII.
		Snippet:        raw.Snippet,
		SnippetLen:     utf8.RuneCountInString(raw.Snippet),
		Description:    raw.Description,
		DescriptionLen: utf8.RuneCountInString(raw.Description),
		HasDescription: raw.Description != "",

		Thumbnail:    raw.Thumbnail,
		HasThumbnail: raw.Thumbnail != "",

		NumViews: raw.NumViews,

		LastSeenRunID: runID,
		LastSeenAt:    now.UTC(),
	}

	if raw.Extent.Valid {
		item.ExtentXMin = raw.Extent.XMin
		item.ExtentYMin = raw.Extent.YMin
		item.ExtentXMax = raw.Extent.XMax
		item.ExtentYMax = raw.Extent.YMax
		item.HasExtent = true
	}

	item.ContentHash = ContentHash(item)
	return item, nil
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
