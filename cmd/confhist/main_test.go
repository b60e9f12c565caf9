package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/confighistory/internal/application/handlers"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
)

// execute runs the CLI against dir and returns stdout.
func execute(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--dir", dir, "--log-level", "error"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := execute(t, dir, "", args...)
	require.NoError(t, err, "confhist %v", args)
	return out
}

func listTimestamps(t *testing.T, dir, entityID string) []string {
	t.Helper()
	var result handlers.RevisionListResult
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, dir, "list", entityID, "--format", "json")), &result))
	out := make([]string, 0, len(result.Revisions))
	for _, rev := range result.Revisions {
		out = append(out, rev.Timestamp)
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCLI_Workflow(t *testing.T) {
	t.Setenv("CONFHIST_STORAGE_PATH", "")
	t.Setenv("CONFHIST_METRICS_TEXTFILE", "")

	for _, backend := range config.Backends {
		t.Run(backend, func(t *testing.T) {
			t.Setenv("CONFHIST_STORAGE_BACKEND", backend)
			dir := t.TempDir()

			out := mustExecute(t, dir, "init")
			assert.Contains(t, out, "initialized successfully")
			assert.Contains(t, out, "Storage backend: "+backend)

			v1 := writeFile(t, filepath.Join(dir, "v1.xml"), "<project>\n  <a>one</a>\n  <b>two</b>\n</project>\n")
			v2 := writeFile(t, filepath.Join(dir, "v2.xml"), "<project>\n  <a>one</a>\n  <b>TWO</b>\n</project>\n")

			out = mustExecute(t, dir, "record", "team/build", v1, "--op", "created", "--author", "alice")
			assert.Contains(t, out, "Recorded team/build@")

			out = mustExecute(t, dir, "record", "team/build", v1)
			assert.Contains(t, out, "Skipped team/build (duplicate)")

			_, err := execute(t, dir, string(mustRead(t, v2)), "record", "team/build", "-")
			require.NoError(t, err)

			ts := listTimestamps(t, dir, "team/build")
			require.Len(t, ts, 2)
			assert.Less(t, ts[0], ts[1])

			out = mustExecute(t, dir, "list")
			assert.Equal(t, "team/build\n", out)

			out = mustExecute(t, dir, "show", "team/build", ts[0])
			assert.Equal(t, "<project>\n  <a>one</a>\n  <b>two</b>\n</project>\n", out)

			out = mustExecute(t, dir, "diff", "team/build", ts[0], ts[1])
			assert.Equal(t, "--- team/build@"+ts[0]+"\n+++ team/build@"+ts[1]+"\n"+
				"@@ -1,4 +1,4 @@\n <project>\n   <a>one</a>\n-  <b>two</b>\n+  <b>TWO</b>\n </project>\n", out)

			out = mustExecute(t, dir, "diff", "team/build", ts[1], "--stat", "--side-by-side")
			assert.Contains(t, out, "|")
			assert.Contains(t, out, "1 hunk, 1 insertion(+), 1 deletion(-)")

			out = mustExecute(t, dir, "diff", "team/build", ts[0], ts[0])
			assert.Equal(t, "No differences.\n", out)

			out = mustExecute(t, dir, "check", "team/build", ts[1])
			assert.Contains(t, out, "previous: "+ts[0])

			_, err = execute(t, dir, "", "check", "team/build", "2020-13-40_99-99-99")
			assert.True(t, errors.Is(err, errInvalidTimestamp))

			restored := filepath.Join(dir, "restored.xml")
			out = mustExecute(t, dir, "restore", "team/build", ts[0], "--output", restored)
			assert.Contains(t, out, "Restored team/build@"+ts[0])
			assert.Equal(t, mustRead(t, v1), mustRead(t, restored))

			ts = listTimestamps(t, dir, "team/build")
			require.Len(t, ts, 3)

			out, err = execute(t, dir, "n\n", "delete", "team/build", ts[0])
			require.NoError(t, err)
			assert.Contains(t, out, "Cancelled.")
			assert.Len(t, listTimestamps(t, dir, "team/build"), 3)

			out = mustExecute(t, dir, "purge", "team/build", "--max-entries", "1", "--force")
			assert.Contains(t, out, "Purged 2 revisions")

			ts = listTimestamps(t, dir, "team/build")
			require.Len(t, ts, 1)

			out, err = execute(t, dir, "yes\n", "delete", "team/build", ts[0])
			require.NoError(t, err)
			assert.Contains(t, out, "Deleted team/build@"+ts[0])

			out = mustExecute(t, dir, "list")
			assert.Equal(t, "No history recorded.\n", out)
		})
	}
}

func TestCLI_Errors(t *testing.T) {
	t.Setenv("CONFHIST_STORAGE_BACKEND", "")
	dir := t.TempDir()

	_, err := execute(t, dir, "", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confhist init")

	mustExecute(t, dir, "init")

	_, err = execute(t, dir, "", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "bad list format", args: []string{"list", "--format", "xml"}, contains: "invalid format"},
		{name: "bad show type", args: []string{"show", "job", "2024-01-01_00-00-00", "--type", "html"}, contains: "invalid type"},
		{name: "unknown revision", args: []string{"show", "job", "2024-01-01_00-00-00"}, contains: "not found"},
		{name: "malformed timestamp", args: []string{"show", "job", "yesterday"}, contains: "not parseable"},
		{name: "bad operation", args: []string{"record", "job", "-", "--op", "moved"}, contains: "unknown operation"},
		{name: "bad entity", args: []string{"record", "/job", "-"}, contains: "validation error"},
		{name: "narrow width", args: []string{"diff", "job", "2024-01-01_00-00-00", "--width", "2"}, contains: "width"},
		{name: "negative purge", args: []string{"purge", "job", "--max-entries", "-1", "--force"}, contains: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dir, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestCLI_MetricsTextfile(t *testing.T) {
	t.Setenv("CONFHIST_STORAGE_BACKEND", "")
	dir := t.TempDir()
	textfile := filepath.Join(dir, "confhist.prom")
	t.Setenv("CONFHIST_METRICS_TEXTFILE", textfile)

	mustExecute(t, dir, "init")
	v1 := writeFile(t, filepath.Join(dir, "v1.txt"), "a\n")
	mustExecute(t, dir, "record", "job", v1, "--op", "CREATED")

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `confhist_revisions_recorded_total{operation="CREATED"} 1`)
	assert.Contains(t, string(data), `confhist_store_operations_total{operation="put",status="success"} 1`)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
