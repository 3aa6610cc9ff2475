package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/constraint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConstraintFileWrapped(t *testing.T) {
	path := writeFile(t, t.TempDir(), "spec.yaml", `
source: declared
constraints:
  - entity: Customer
    field: email
    descriptor: format
  - entity: Order
    field: id
    descriptor: uniqueness
    source: structural
`)

	raws, err := loadConstraintFile(path)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	// The file-level source only fills items without their own.
	assert.Equal(t, constraint.SourceDeclared, raws[0].Source)
	assert.Equal(t, constraint.SourceStructural, raws[1].Source)
	assert.Equal(t, path, raws[0].Location)
}

func TestLoadConstraintFileBareList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "code.yaml", `
- entity: Product
  field: price
  descriptor: ge=1
`)

	raws, err := loadConstraintFile(path)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, constraint.SourceUnknown, raws[0].Source)
}

func TestLoadRawConstraintsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b/second.yaml", "- {entity: B, field: f, descriptor: presence}\n")
	writeFile(t, dir, "a/first.yaml", "- {entity: A, field: f, descriptor: presence}\n")
	writeFile(t, dir, "a/ignored.txt", "not yaml\n")

	raws, err := loadRawConstraints(dir, []string{"**/*.yaml"})
	require.NoError(t, err)
	require.Len(t, raws, 2)

	// Deterministic path order, independent of write order.
	assert.Equal(t, "A", raws[0].Entity)
	assert.Equal(t, "B", raws[1].Entity)
}

func TestLoadRawConstraintsSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "only.yaml", "- {entity: A, field: f, descriptor: presence}\n")

	raws, err := loadRawConstraints(path, nil)
	require.NoError(t, err)
	assert.Len(t, raws, 1)
}

func TestLoadRawConstraintsMissingRoot(t *testing.T) {
	_, err := loadRawConstraints(filepath.Join(t.TempDir(), "missing"), []string{"**/*.yaml"})
	assert.Error(t, err)
}
