package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_Import(t *testing.T) {
	t.Setenv("CONFHIST_STORAGE_BACKEND", "")
	t.Setenv("CONFHIST_METRICS_TEXTFILE", "")
	dir := t.TempDir()
	mustExecute(t, dir, "init")

	snapshots := filepath.Join(dir, "nightly")
	require.NoError(t, os.MkdirAll(snapshots, 0755))
	writeFile(t, filepath.Join(snapshots, "build.xml"), "<build/>\n")
	writeFile(t, filepath.Join(snapshots, "deploy.xml"), "<deploy/>\n")
	manifest := writeFile(t, filepath.Join(snapshots, "manifest.yaml"), `- entity_id: team/build
  file: build.xml
  operation: created
  author: alice
- entity_id: team/deploy
  file: deploy.xml
- entity_id: team/missing
  file: missing.xml
`)

	out := mustExecute(t, dir, "import", manifest, "--dry-run")
	assert.Contains(t, out, "Dry run: 2 snapshots would be recorded, 1 errors")
	assert.Equal(t, "No history recorded.\n", mustExecute(t, dir, "list"))

	out = mustExecute(t, dir, "import", manifest)
	assert.Contains(t, out, "Recorded team/build@")
	assert.Contains(t, out, "Recorded team/deploy@")
	assert.Contains(t, out, "line 7: reading missing.xml")
	assert.Contains(t, out, "Imported: 2 snapshots, 1 errors")

	assert.Equal(t, "team/build\nteam/deploy\n", mustExecute(t, dir, "list"))
	require.Len(t, listTimestamps(t, dir, "team/build"), 1)
}

func TestCLI_Import_Errors(t *testing.T) {
	t.Setenv("CONFHIST_STORAGE_BACKEND", "")
	dir := t.TempDir()
	mustExecute(t, dir, "init")

	_, err := execute(t, dir, "", "import", "manifest.json", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --format")

	_, err = execute(t, dir, "", "import", filepath.Join(dir, "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening file")
}
