// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strings"
	"time"
)

// EpochMillis is a source-native epoch-millisecond timestamp that may be
// missing or malformed. Valid is false when the source value was absent or
// not a number; decoding never fails because of it.
type EpochMillis struct {
	Millis int64
	Valid  bool
}

// UnmarshalJSON accepts a JSON number and marks anything else as absent.
func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*e = EpochMillis{}
		return nil
	}
	ms, err := n.Int64()
	if err != nil {
		*e = EpochMillis{}
		return nil
	}
	*e = EpochMillis{Millis: ms, Valid: true}
	return nil
}

// Time converts the timestamp to a UTC instant, or nil when absent.
func (e EpochMillis) Time() *time.Time {
	if !e.Valid {
		return nil
	}
	t := time.UnixMilli(e.Millis).UTC()
	return &t
}

// TagList is an item's tag set. The portal serves tags either as a JSON
// array of strings or as a single comma-separated string; both decode to
// an ordered list of trimmed tags.
type TagList []string

// UnmarshalJSON accepts a string array or a comma-separated string.
// Non-string shapes decode to an empty list.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = trimTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = trimTags(strings.Split(s, ","))
		return nil
	}
	*t = nil
	return nil
}

func trimTags(raw []string) TagList {
	tags := make(TagList, 0, len(raw))
	for _, tag := range raw {
		tags = append(tags, strings.TrimSpace(tag))
	}
	return tags
}

// Extent is a two-point bounding box [[xmin,ymin],[xmax,ymax]]. Valid is
// false when the source shape did not match or a coordinate was not
// numeric; decoding never fails because of it.
type Extent struct {
	XMin, YMin float64
	XMax, YMax float64
	Valid      bool
}

// UnmarshalJSON accepts exactly two points of exactly two numbers each.
func (e *Extent) UnmarshalJSON(data []byte) error {
	var box [][]float64
	if err := json.Unmarshal(data, &box); err != nil {
		*e = Extent{}
		return nil
	}
	if len(box) != 2 || len(box[0]) != 2 || len(box[1]) != 2 {
		*e = Extent{}
		return nil
	}
	*e = Extent{
		XMin: box[0][0], YMin: box[0][1],
		XMax: box[1][0], YMax: box[1][1],
		Valid: true,
	}
	return nil
}

// RawItem is one catalog record as served by the portal search API. Every
// field is optional; the loosely-typed fields (timestamps, tags, extent)
// carry their own tolerant decoding so a malformed field degrades to
// absent instead of failing the record.
type RawItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Type        string      `json:"type"`
	Owner       string      `json:"owner"`
	URL         string      `json:"url"`
	Access      string      `json:"access"`
	Created     EpochMillis `json:"created"`
	Modified    EpochMillis `json:"modified"`
	Tags        TagList     `json:"tags"`
	Snippet     string      `json:"snippet"`
	Description string      `json:"description"`
	Thumbnail   string      `json:"thumbnail"`
	Extent      Extent      `json:"extent"`
	NumViews    int64       `json:"numViews"`
}

// CanonicalItem is the normalized, current-state representation of one
// catalog item. Exactly one row per ItemID exists in the store; it always
// reflects the most recent run that observed the item.
type CanonicalItem struct {
	ItemID   string
	Title    string
	ItemType string
	Owner    string
	URL      string
	Access   string

	CreatedAt  *time.Time
	ModifiedAt *time.Time

	Tags      []string
	TagsCount int

	Snippet        string
	SnippetLen     int
	Description    string
	DescriptionLen int
	HasDescription bool

	Thumbnail    string
	HasThumbnail bool

	ExtentXMin float64
	ExtentYMin float64
	ExtentXMax float64
	ExtentYMax float64
	HasExtent  bool

	NumViews int64

	// ContentHash digests the material fields; incidental fields such as
	// NumViews and the last-seen markers are excluded.
	ContentHash string

	LastSeenRunID string
	LastSeenAt    time.Time
}
