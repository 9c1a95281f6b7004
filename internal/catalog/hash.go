// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

// material is the fixed subset of fields whose change constitutes a new
// item version. Serialization order is the struct declaration order, so the
// digest input is stable. View counts and last-seen markers are deliberately
// not part of this struct: they churn on every run without the content
// having changed.
type material struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	Owner       string    `json:"owner"`
	URL         string    `json:"url"`
	Access      string    `json:"access"`
	Tags        []string  `json:"tags"`
	Snippet     string    `json:"snippet"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	Extent      []float64 `json:"extent"`
	Modified    string    `json:"modified"`
}

// ContentHash computes the SHA-256 digest of an item's material fields.
// It is a pure function of those fields: two items that differ only in
// incidental fields hash identically.
func ContentHash(item types.CanonicalItem) string {
	m := material{
		ID:          item.ItemID,
		Title:       item.Title,
		Type:        item.ItemType,
		Owner:       item.Owner,
		URL:         item.URL,
		Access:      item.Access,
		Tags:        item.Tags,
		Snippet:     item.Snippet,
		Description: item.Description,
		Thumbnail:   item.Thumbnail,
	}
	if item.HasExtent {
		m.Extent = []float64{item.ExtentXMin, item.ExtentYMin, item.ExtentXMax, item.ExtentYMax}
	}
	if item.ModifiedAt != nil {
		m.Modified = item.ModifiedAt.UTC().Format(time.RFC3339Nano)
	}

	// Marshaling a struct of basic types cannot fail.
	data, _ := json.Marshal(m)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
