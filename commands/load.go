// Package commands implements the devmatrix CLI commands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// constraintFile is the on-disk YAML shape extraction sources write.
type constraintFile struct {
	Source      constraint.Source          `yaml:"source"`
	Constraints []constraint.RawConstraint `yaml:"constraints"`
}

// loadRawConstraints reads every file under root matching the doublestar
// patterns and concatenates their raw constraints in deterministic path
// order. A file-level source tag fills in items that omit their own.
func loadRawConstraints(root string, patterns []string) ([]constraint.RawConstraint, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	var paths []string
	if !info.IsDir() {
		paths = []string{root}
	} else {
		fsys := os.DirFS(root)
		seen := make(map[string]bool)
		for _, pattern := range patterns {
			matches, err := doublestar.Glob(fsys, pattern)
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", pattern, err)
			}
			for _, m := range matches {
				full := filepath.Join(root, filepath.FromSlash(m))
				if fi, err := os.Stat(full); err == nil && fi.Mode().IsRegular() && !seen[full] {
					seen[full] = true
					paths = append(paths, full)
				}
			}
		}
		sort.Strings(paths)
	}

	var raws []constraint.RawConstraint
	for _, path := range paths {
		fileRaws, err := loadConstraintFile(path)
		if err != nil {
			return nil, err
		}
		raws = append(raws, fileRaws...)
	}
	return raws, nil
}

// loadConstraintFile decodes one constraint file. Both the wrapped
// {source, constraints} shape and a bare constraint list are accepted.
func loadConstraintFile(path string) ([]constraint.RawConstraint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var file constraintFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		var bare []constraint.RawConstraint
		if bareErr := yaml.Unmarshal(data, &bare); bareErr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		file.Constraints = bare
	}

	for i := range file.Constraints {
		if file.Constraints[i].Source == "" {
			if file.Source != "" {
				file.Constraints[i].Source = file.Source
			} else {
				file.Constraints[i].Source = constraint.SourceUnknown
			}
		}
		if file.Constraints[i].Location == "" {
			file.Constraints[i].Location = path
		}
	}
	return file.Constraints, nil
}
