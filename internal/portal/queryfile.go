// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package portal

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// QueryFile is the on-disk form of a saved snapshot query. Operators keep
// these alongside the database so scheduled snapshots stay reproducible.
type QueryFile struct {
	// Query is the portal search query (e.g. `orgid:abc AND access:public`).
	Query string `yaml:"query,omitempty"`

	// ItemTypes restricts the snapshot to the given portal item types.
	ItemTypes []string `yaml:"item_types,omitempty"`

	// MaxItems caps the number of items fetched; 0 keeps the configured default.
	MaxItems int `yaml:"max_items,omitempty"`
}

// ReadQueryFile loads a saved snapshot query from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// WriteQueryFile saves a snapshot query to a YAML file.
func WriteQueryFile(path string, qf QueryFile) error {
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
