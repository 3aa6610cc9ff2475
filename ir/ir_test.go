package ir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntities() []Entity {
	return []Entity{
		{
			Name:    "Customer",
			Aliases: []string{"Client"},
			Fields: []Field{
				{Name: "registration_date", Type: "datetime", Aliases: []string{"signup_date"}},
				{Name: "email", Type: "string"},
			},
		},
		{
			Name:   "Product",
			Fields: []Field{{Name: "price", Type: "integer"}},
		},
	}
}

func TestSnapshotLookups(t *testing.T) {
	s := New(sampleEntities(), "v1")
	assert.Equal(t, "v1", s.Version())

	e, ok := s.Entity("Customer")
	require.True(t, ok)
	assert.Equal(t, "Customer", e.Name)
	_, ok = s.Entity("customer")
	assert.False(t, ok)

	e, ok = s.EntityFold("CUSTOMER")
	require.True(t, ok)
	assert.Equal(t, "Customer", e.Name)

	e, ok = s.EntityAlias("client")
	require.True(t, ok)
	assert.Equal(t, "Customer", e.Name)

	f, ok := s.Field("Customer", "email")
	require.True(t, ok)
	assert.Equal(t, "string", f.Type)

	f, ok = s.FieldFold("Customer", "EMAIL")
	require.True(t, ok)
	assert.Equal(t, "email", f.Name)

	f, ok = s.FieldAlias("Customer", "signup_date")
	require.True(t, ok)
	assert.Equal(t, "registration_date", f.Name)

	_, ok = s.Field("Ghost", "email")
	assert.False(t, ok)
}

func TestFieldInteger(t *testing.T) {
	assert.True(t, Field{Type: "integer"}.Integer())
	assert.True(t, Field{Type: "INT64"}.Integer())
	assert.False(t, Field{Type: "decimal"}.Integer())
	assert.False(t, Field{Type: ""}.Integer())
}

func TestContentHashVersion(t *testing.T) {
	a := New(sampleEntities(), "")
	b := New(sampleEntities(), "")
	require.NotEmpty(t, a.Version())
	assert.Equal(t, a.Version(), b.Version())

	changed := sampleEntities()
	changed[1].Fields[0].Type = "decimal"
	c := New(changed, "")
	assert.NotEqual(t, a.Version(), c.Version())
}

func TestParse(t *testing.T) {
	data := []byte(`
version: "2024-06-01"
entities:
  - name: Customer
    aliases: [client]
    fields:
      - name: email
        type: string
  - name: Order
    fields:
      - name: id
        type: integer
`)

	s, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", s.Version())
	assert.Len(t, s.Entities(), 2)

	_, ok := s.EntityAlias("client")
	assert.True(t, ok)
}

func TestParseRejectsEmptyAndUnnamed(t *testing.T) {
	_, err := Parse([]byte("entities: []"))
	assert.Error(t, err)

	_, err = Parse([]byte("entities:\n  - fields: []"))
	assert.Error(t, err)

	_, err = Parse([]byte("not: [valid"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - name: Customer\n    fields: []\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	_, ok := s.Entity("Customer")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
