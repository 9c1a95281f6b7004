// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Run is one invocation of the snapshot pipeline. FinishedAt is nil while
// the run is in progress; it is set exactly once, on completion or on
// controlled failure, and the row is never deleted.
type Run struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Source          string
	PortalURL       string
	OrgID           string
	TriggeredBy     string
	PipelineVersion string
}

// ItemVersion is an immutable interval during which an item's content hash
// was constant (SCD2). For a given ItemID at most one row has IsCurrent
// true; ValidFrom of a new row equals ValidTo of the row it supersedes.
type ItemVersion struct {
	ItemID      string
	ContentHash string
	ValidFrom   time.Time
	ValidTo     *time.Time
	IsCurrent   bool

	// Frozen copy of the fields material to this version.
	Title          string
	ItemType       string
	Owner          string
	URL            string
	Access         string
	ModifiedAt     *time.Time
	TagsJSON       string
	DescriptionLen int
	HasExtent      bool
	ExtentXMin     float64
	ExtentYMin     float64
	ExtentXMax     float64
	ExtentYMax     float64

	FirstSeenRunID string
	LastSeenRunID  string
}

// QualityScore is one metadata-quality assessment for a (run, item) pair.
// Rows are created once per item per run and never mutated.
type QualityScore struct {
	RunID      string
	ItemID     string
	Score      int
	Breakdown  map[string]int
	Missing    []string
	ComputedAt time.Time
}

// HealthCheckResult is one reachability probe for a (run, item) pair.
// StatusCode and LatencyMS are nil when the probe failed below HTTP
// (timeout, DNS, TLS, connection refused).
type HealthCheckResult struct {
	RunID        string
	ItemID       string
	CheckedURL   string
	OK           bool
	StatusCode   *int
	LatencyMS    *int64
	ErrorMessage string
	CheckedAt    time.Time
}
