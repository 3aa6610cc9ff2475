// Package config provides configuration loading and management for the
// constraint reconciliation engine. The source-priority order, confidence
// penalty table, and category-equivalence seeds live here as explicit,
// testable tables rather than inline conditionals scattered across the
// pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

// Config is the complete engine configuration.
type Config struct {
	Sources   SourcesConfig   `yaml:"sources"`
	Penalties PenaltiesConfig `yaml:"penalties"`
	Match     MatchConfig     `yaml:"match"`
	Fuzzy     FuzzyConfig     `yaml:"fuzzy"`
	Cache     CacheConfig     `yaml:"cache"`
	NATS      NATSConfig      `yaml:"nats"`
	Watch     WatchConfig     `yaml:"watch"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// MetricsConfig configures the Prometheus metrics endpoint served by
// long-running commands. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SourcesConfig fixes the total order over extraction sources used for
// merge tie-breaking. Lower rank wins. Confidence scores are never
// consulted at merge time; priority is a configuration-level decision.
type SourcesConfig struct {
	// Priority maps source IDs to ranks. Sources absent from the map
	// sort after every listed source, in first-seen order.
	Priority map[constraint.Source]int `yaml:"priority"`
}

// Rank returns the priority rank for a source. Unlisted sources rank
// after all listed ones.
func (s SourcesConfig) Rank(src constraint.Source) int {
	if r, ok := s.Priority[src]; ok {
		return r
	}
	return len(s.Priority) + 1
}

// PenaltiesConfig is the confidence penalty table applied during
// normalization, one entry per non-exact resolution step, in increasing
// severity.
type PenaltiesConfig struct {
	CaseVariation    float64 `yaml:"case_variation"`
	CaseConversion   float64 `yaml:"case_conversion"`
	PluralSingular   float64 `yaml:"plural_singular"`
	AliasMapping     float64 `yaml:"alias_mapping"`
	PatternInference float64 `yaml:"pattern_inference"`

	// BySource is the additional per-source reliability penalty.
	// Declared and structural sources are penalized least, inferred
	// business-logic sources most.
	BySource map[constraint.Source]float64 `yaml:"by_source"`
}

// SourcePenalty returns the reliability penalty for a source.
func (p PenaltiesConfig) SourcePenalty(src constraint.Source) float64 {
	if v, ok := p.BySource[src]; ok {
		return v
	}
	if v, ok := p.BySource[constraint.SourceUnknown]; ok {
		return v
	}
	return 0
}

// EquivalencePair seeds the CATEGORY tier with a known-equivalent pair of
// validation descriptors on integer fields, e.g. ">0" and "ge=1".
type EquivalencePair struct {
	Spec string `yaml:"spec"`
	Code string `yaml:"code"`
}

// MatchConfig configures the tiered matcher.
type MatchConfig struct {
	// ExtraEquivalences extends the built-in integer bound equivalence
	// table. The built-ins (>N = >=N+1, <N = <=N-1) always apply.
	ExtraEquivalences []EquivalencePair `yaml:"extra_equivalences"`
}

// FuzzyConfig configures the optional semantic-similarity collaborator.
type FuzzyConfig struct {
	// Enabled controls whether the FUZZY tier runs at all.
	Enabled bool `yaml:"enabled"`

	// Endpoint is an OpenAI-compatible chat completions endpoint.
	Endpoint string `yaml:"endpoint"`

	// Model is the model name sent to the endpoint.
	Model string `yaml:"model"`

	// Threshold is the minimum similarity score to accept a fuzzy match.
	Threshold float64 `yaml:"threshold"`

	// BatchSize is the maximum comparisons per collaborator request.
	BatchSize int `yaml:"batch_size"`

	// Timeout bounds each batched collaborator call.
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the persistent cache for fuzzy similarity scores
// and normalization results.
type CacheConfig struct {
	// Path is the BadgerDB directory. Empty disables persistence and
	// falls back to the in-memory cache.
	Path string `yaml:"path"`

	// TTL bounds how long cached fuzzy scores survive. Zero keeps them
	// until the store is invalidated.
	TTL time.Duration `yaml:"ttl"`
}

// NATSConfig configures the optional streaming surfaces: raw-constraint
// ingest and compliance-report publishing.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables streaming.
	URL string `yaml:"url"`

	// RawSubjectPrefix is the subject prefix raw constraints arrive on.
	RawSubjectPrefix string `yaml:"raw_subject_prefix"`

	// ReportSubject is the subject compliance reports are published to.
	ReportSubject string `yaml:"report_subject"`
}

// WatchConfig configures file watching for the watch command.
type WatchConfig struct {
	// Debounce is how long to wait for further changes before revalidating.
	Debounce time.Duration `yaml:"debounce"`

	// Patterns are doublestar globs selecting raw-constraint files.
	Patterns []string `yaml:"patterns"`

	// ExcludeDirs lists directory names to skip.
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// DefaultConfig returns a Config with the authoritative default tables.
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Priority: map[constraint.Source]int{
				constraint.SourceStructural:    1,
				constraint.SourceDeclared:      2,
				constraint.SourceBusinessLogic: 3,
				constraint.SourceUnknown:       4,
			},
		},
		Penalties: PenaltiesConfig{
			CaseVariation:    0.05,
			CaseConversion:   0.10,
			PluralSingular:   0.15,
			AliasMapping:     0.20,
			PatternInference: 0.25,
			BySource: map[constraint.Source]float64{
				constraint.SourceStructural:    0.00,
				constraint.SourceDeclared:      0.02,
				constraint.SourceBusinessLogic: 0.10,
				constraint.SourceUnknown:       0.15,
			},
		},
		Match: MatchConfig{},
		Fuzzy: FuzzyConfig{
			Enabled:   false,
			Endpoint:  "http://localhost:11434/v1",
			Model:     "qwen2.5-coder:32b",
			Threshold: 0.75,
			BatchSize: 20,
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			Path: "",
			TTL:  7 * 24 * time.Hour,
		},
		NATS: NATSConfig{
			URL:              "",
			RawSubjectPrefix: "devmatrix.constraint.raw",
			ReportSubject:    "devmatrix.compliance.report",
		},
		Watch: WatchConfig{
			Debounce:    500 * time.Millisecond,
			Patterns:    []string{"**/*.yaml", "**/*.yml"},
			ExcludeDirs: []string{".git", "node_modules", "vendor"},
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.Sources.Priority) == 0 {
		return fmt.Errorf("sources.priority must list at least one source")
	}
	seen := make(map[int]constraint.Source, len(c.Sources.Priority))
	for src, rank := range c.Sources.Priority {
		if prev, dup := seen[rank]; dup {
			return fmt.Errorf("sources.priority rank %d assigned to both %q and %q", rank, prev, src)
		}
		seen[rank] = src
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"penalties.case_variation", c.Penalties.CaseVariation},
		{"penalties.case_conversion", c.Penalties.CaseConversion},
		{"penalties.plural_singular", c.Penalties.PluralSingular},
		{"penalties.alias_mapping", c.Penalties.AliasMapping},
		{"penalties.pattern_inference", c.Penalties.PatternInference},
	} {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", p.name)
		}
	}
	if c.Fuzzy.Threshold < 0 || c.Fuzzy.Threshold > 1 {
		return fmt.Errorf("fuzzy.threshold must be between 0 and 1")
	}
	if c.Fuzzy.Enabled && c.Fuzzy.Endpoint == "" {
		return fmt.Errorf("fuzzy.endpoint is required when fuzzy matching is enabled")
	}
	if c.Fuzzy.BatchSize < 1 {
		return fmt.Errorf("fuzzy.batch_size must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Sources.Priority) > 0 {
		c.Sources.Priority = other.Sources.Priority
	}
	if len(other.Penalties.BySource) > 0 {
		c.Penalties.BySource = other.Penalties.BySource
	}
	if len(other.Match.ExtraEquivalences) > 0 {
		c.Match.ExtraEquivalences = other.Match.ExtraEquivalences
	}

	if other.Fuzzy.Endpoint != "" {
		c.Fuzzy.Endpoint = other.Fuzzy.Endpoint
	}
	if other.Fuzzy.Model != "" {
		c.Fuzzy.Model = other.Fuzzy.Model
	}
	if other.Fuzzy.Threshold != 0 {
		c.Fuzzy.Threshold = other.Fuzzy.Threshold
	}
	if other.Fuzzy.Timeout != 0 {
		c.Fuzzy.Timeout = other.Fuzzy.Timeout
	}
	if other.Fuzzy.BatchSize != 0 {
		c.Fuzzy.BatchSize = other.Fuzzy.BatchSize
	}
	c.Fuzzy.Enabled = c.Fuzzy.Enabled || other.Fuzzy.Enabled

	if other.Cache.Path != "" {
		c.Cache.Path = other.Cache.Path
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.RawSubjectPrefix != "" {
		c.NATS.RawSubjectPrefix = other.NATS.RawSubjectPrefix
	}
	if other.NATS.ReportSubject != "" {
		c.NATS.ReportSubject = other.NATS.ReportSubject
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.Patterns) > 0 {
		c.Watch.Patterns = other.Watch.Patterns
	}
	if len(other.Watch.ExcludeDirs) > 0 {
		c.Watch.ExcludeDirs = other.Watch.ExcludeDirs
	}

	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
