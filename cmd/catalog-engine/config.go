// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/catalog-engine/pkg/types"
)

const (
	defaultPortalURL    = "https://www.arcgis.com"
	defaultUserAgent    = "catalog-engine/0.1"
	defaultHTTPTimeout  = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultDBPath       = "data/catalog.db"
	defaultOutDir       = "reports"
)

// pipelineConfig assembles the stage configurations from viper, which layers
// catalog-engine.yaml under CATALOG_ENGINE_* environment variables.
func pipelineConfig() types.PipelineConfig {
	v := viper.GetViper()
	v.SetDefault("portal.url", defaultPortalURL)
	v.SetDefault("portal.page_size", 100)
	v.SetDefault("portal.timeout", defaultHTTPTimeout)
	v.SetDefault("snapshot.max_items", 200)
	v.SetDefault("snapshot.enable_history", true)
	v.SetDefault("snapshot.enable_scores", true)
	v.SetDefault("snapshot.enable_health", true)
	v.SetDefault("health.max_workers", 10)
	v.SetDefault("health.timeout", defaultProbeTimeout)
	v.SetDefault("store.db_path", defaultDBPath)
	v.SetDefault("report.out_dir", defaultOutDir)
	v.SetDefault("report.row_limit", 10)
	v.SetDefault("sftp.port", 22)
	v.SetDefault("sftp.remote_dir", "/")

	cfg := types.PipelineConfig{
		Portal: types.PortalConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("portal.timeout"),
				UserAgent: defaultUserAgent,
			},
			URL:      v.GetString("portal.url"),
			OrgID:    v.GetString("portal.org_id"),
			Token:    v.GetString("portal.token"),
			PageSize: v.GetInt("portal.page_size"),
		},
		Snapshot: types.SnapshotConfig{
			MaxItems:        v.GetInt("snapshot.max_items"),
			Query:           v.GetString("snapshot.query"),
			ItemTypes:       v.GetStringSlice("snapshot.item_types"),
			EnableHistory:   v.GetBool("snapshot.enable_history"),
			EnableScores:    v.GetBool("snapshot.enable_scores"),
			EnableHealth:    v.GetBool("snapshot.enable_health"),
			PipelineVersion: version,
		},
		Health: types.HealthConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("health.timeout"),
				UserAgent: defaultUserAgent,
			},
			MaxWorkers: v.GetInt("health.max_workers"),
		},
		Store: types.StoreConfig{
			DBPath: v.GetString("store.db_path"),
		},
		Report: types.ReportConfig{
			OutDir:   v.GetString("report.out_dir"),
			RowLimit: v.GetInt("report.row_limit"),
		},
		SFTP: types.SFTPConfig{
			Host:      v.GetString("sftp.host"),
			Port:      v.GetInt("sftp.port"),
			User:      v.GetString("sftp.user"),
			Password:  v.GetString("sftp.password"),
			RemoteDir: v.GetString("sftp.remote_dir"),
		},
	}

	if db, _ := rootCmd.PersistentFlags().GetString("db"); db != "" {
		cfg.Store.DBPath = db
	}
	return cfg
}
