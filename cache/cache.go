// Package cache provides the explicit cache object threaded through the
// reconciliation pipeline: fuzzy similarity scores keyed by descriptor
// pair and normalization results keyed by raw-hash plus IR version.
// There are no ambient globals; callers own the cache and fire its
// invalidation hook when new raw constraints are ingested.
package cache

import (
	"strings"
	"sync"
)

// Namespaces used by the pipeline.
const (
	// NamespaceFuzzy holds similarity scores keyed by the normalized
	// (spec_descriptor, code_descriptor) pair.
	NamespaceFuzzy = "fuzzy"

	// NamespaceNormalize holds normalized constraints keyed by raw
	// content hash plus IR snapshot version.
	NamespaceNormalize = "normalize"
)

// Cache is a namespaced byte store. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(namespace, key string) ([]byte, bool, error)

	// Set stores a value.
	Set(namespace, key string, value []byte) error

	// Invalidate drops every entry in a namespace. The pipeline fires
	// this for NamespaceNormalize whenever new raw constraints arrive.
	Invalidate(namespace string) error

	// Close releases underlying resources.
	Close() error
}

// Memory is an in-process Cache used when no persistent path is
// configured, and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements Cache.
func (m *Memory) Get(namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[namespace+"/"+key]
	return v, ok, nil
}

// Set implements Cache.
func (m *Memory) Set(namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[namespace+"/"+key] = value
	return nil
}

// Invalidate implements Cache.
func (m *Memory) Invalidate(namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := namespace + "/"
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Close implements Cache.
func (m *Memory) Close() error { return nil }
