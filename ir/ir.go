// Package ir holds the read-only intermediate representation snapshot a
// validation run resolves against: canonical entity and field names plus
// their explicit alias tables. Snapshots are produced by the external
// spec-to-IR extraction component and loaded here from YAML.
package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Field is a canonical field declaration within an entity.
type Field struct {
	// Name is the authoritative spelling of the field.
	Name string `json:"name" yaml:"name"`

	// Type is the IR-level type name, e.g. "string", "integer", "decimal".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Aliases are explicit alternate spellings. Alias resolution only
	// ever consults this table; nothing is inferred beyond the fixed
	// resolver rules.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Integer reports whether the field's IR type is an integer domain.
// Category matching uses this to decide strict/non-strict bound equivalence.
func (f Field) Integer() bool {
	switch strings.ToLower(f.Type) {
	case "int", "integer", "int32", "int64", "bigint", "smallint":
		return true
	}
	return false
}

// Entity is a canonical entity declaration.
type Entity struct {
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Fields  []Field  `json:"fields" yaml:"fields"`
}

// Snapshot is an immutable IR snapshot for one validation run.
// Construct with New or Load; the zero value is an empty snapshot.
type Snapshot struct {
	version  string
	entities []Entity

	byName  map[string]*Entity // exact name
	byLower map[string]*Entity // lowercased name
	byAlias map[string]*Entity // lowercased alias

	fields map[string]*fieldIndex // canonical entity name -> field index
}

type fieldIndex struct {
	byName  map[string]*Field
	byLower map[string]*Field
	byAlias map[string]*Field
}

// New builds a snapshot from entity declarations. If version is empty a
// content hash of the declarations is used, so identical IR inputs yield
// identical cache keys.
func New(entities []Entity, version string) *Snapshot {
	s := &Snapshot{
		version:  version,
		entities: entities,
		byName:   make(map[string]*Entity, len(entities)),
		byLower:  make(map[string]*Entity, len(entities)),
		byAlias:  make(map[string]*Entity),
		fields:   make(map[string]*fieldIndex, len(entities)),
	}

	for i := range entities {
		e := &s.entities[i]
		s.byName[e.Name] = e
		s.byLower[strings.ToLower(e.Name)] = e
		for _, a := range e.Aliases {
			s.byAlias[strings.ToLower(a)] = e
		}

		fi := &fieldIndex{
			byName:  make(map[string]*Field, len(e.Fields)),
			byLower: make(map[string]*Field, len(e.Fields)),
			byAlias: make(map[string]*Field),
		}
		for j := range e.Fields {
			f := &e.Fields[j]
			fi.byName[f.Name] = f
			fi.byLower[strings.ToLower(f.Name)] = f
			for _, a := range f.Aliases {
				fi.byAlias[strings.ToLower(a)] = f
			}
		}
		s.fields[e.Name] = fi
	}

	if s.version == "" {
		s.version = s.contentHash()
	}
	return s
}

// Version identifies this snapshot for cache keying.
func (s *Snapshot) Version() string { return s.version }

// Entities returns the canonical entity declarations in declaration order.
func (s *Snapshot) Entities() []Entity { return s.entities }

// Entity returns the entity with the exact canonical name.
func (s *Snapshot) Entity(name string) (*Entity, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// EntityFold returns the entity matching name case-insensitively.
func (s *Snapshot) EntityFold(name string) (*Entity, bool) {
	e, ok := s.byLower[strings.ToLower(name)]
	return e, ok
}

// EntityAlias returns the entity whose alias table contains name.
func (s *Snapshot) EntityAlias(name string) (*Entity, bool) {
	e, ok := s.byAlias[strings.ToLower(name)]
	return e, ok
}

// Field returns the field with the exact canonical name on the entity.
func (s *Snapshot) Field(entity, name string) (*Field, bool) {
	fi, ok := s.fields[entity]
	if !ok {
		return nil, false
	}
	f, ok := fi.byName[name]
	return f, ok
}

// FieldFold returns the field matching name case-insensitively.
func (s *Snapshot) FieldFold(entity, name string) (*Field, bool) {
	fi, ok := s.fields[entity]
	if !ok {
		return nil, false
	}
	f, ok := fi.byLower[strings.ToLower(name)]
	return f, ok
}

// FieldAlias returns the field whose alias table contains name.
func (s *Snapshot) FieldAlias(entity, name string) (*Field, bool) {
	fi, ok := s.fields[entity]
	if !ok {
		return nil, false
	}
	f, ok := fi.byAlias[strings.ToLower(name)]
	return f, ok
}

// contentHash computes a stable hash over the declarations.
func (s *Snapshot) contentHash() string {
	h := sha256.New()
	names := make([]string, 0, len(s.entities))
	for _, e := range s.entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := s.byName[name]
		fmt.Fprintf(h, "%s\x00%s\x00", e.Name, strings.Join(e.Aliases, ","))
		for _, f := range e.Fields {
			fmt.Fprintf(h, "%s\x01%s\x01%s\x00", f.Name, f.Type, strings.Join(f.Aliases, ","))
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
