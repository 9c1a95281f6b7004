// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the catalog-engine pipeline.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "catalog-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// PortalConfig holds settings for the content-source portal connector.
type PortalConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the portal base URL (e.g. "https://www.arcgis.com").
	URL string `json:"url" yaml:"url"`

	// OrgID identifies the portal organization, recorded on each run.
	OrgID string `json:"org_id" yaml:"org_id"`

	// Token is an optional access token for authenticated searches.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// PageSize is the number of items requested per search page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// SnapshotConfig holds settings for one snapshot run.
type SnapshotConfig struct {
	// MaxItems caps the number of items fetched from the portal (default 200).
	MaxItems int `json:"max_items" yaml:"max_items"`

	// Query is the portal search query (default "access:public").
	Query string `json:"query" yaml:"query"`

	// ItemTypes restricts the search to the given item types.
	ItemTypes []string `json:"item_types,omitempty" yaml:"item_types,omitempty"`

	// EnableHistory toggles SCD2 history reconciliation.
	EnableHistory bool `json:"enable_history" yaml:"enable_history"`

	// EnableScores toggles quality scoring.
	EnableScores bool `json:"enable_scores" yaml:"enable_scores"`

	// EnableHealth toggles URL health probing.
	EnableHealth bool `json:"enable_health" yaml:"enable_health"`

	// TriggeredBy records what started the run (e.g. "manual", "scheduler").
	TriggeredBy string `json:"triggered_by" yaml:"triggered_by"`

	// PipelineVersion tags rows written by this build of the pipeline.
	PipelineVersion string `json:"pipeline_version" yaml:"pipeline_version"`
}

// HealthConfig holds settings for the health prober.
type HealthConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxWorkers bounds the number of concurrent probes (default 10).
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`
}

// StoreConfig holds settings for the catalog store.
type StoreConfig struct {
	// DBPath is the SQLite database file (default "data/catalog.db").
	DBPath string `json:"db_path" yaml:"db_path"`
}

// ReportConfig holds settings for report and remediation-pack generation.
type ReportConfig struct {
	// OutDir is the directory report documents and exports are written to
	// (default "reports").
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// RowLimit caps rows shown per issue table in the markdown document
	// (default 10). CSV exports are never truncated.
	RowLimit int `json:"row_limit" yaml:"row_limit"`
}

// SFTPConfig holds settings for optional report delivery to an SFTP drop.
type SFTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// RemoteDir is the destination directory on the drop (default "/").
	RemoteDir string `json:"remote_dir" yaml:"remote_dir"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Portal   PortalConfig   `json:"portal" yaml:"portal"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Health   HealthConfig   `json:"health" yaml:"health"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Report   ReportConfig   `json:"report" yaml:"report"`
	SFTP     SFTPConfig     `json:"sftp" yaml:"sftp"`
}
