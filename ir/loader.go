package ir

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSnapshot is the on-disk YAML shape of an IR snapshot.
type fileSnapshot struct {
	Version  string   `yaml:"version"`
	Entities []Entity `yaml:"entities"`
}

// Load reads an IR snapshot from a YAML file produced by the spec-to-IR
// extraction component.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read IR snapshot: %w", err)
	}
	return Parse(data)
}

// Parse decodes an IR snapshot from YAML bytes.
func Parse(data []byte) (*Snapshot, error) {
	var fs fileSnapshot
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse IR snapshot: %w", err)
	}
	if len(fs.Entities) == 0 {
		return nil, fmt.Errorf("IR snapshot declares no entities")
	}
	for _, e := range fs.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("IR snapshot contains an unnamed entity")
		}
	}
	return New(fs.Entities, fs.Version), nil
}
