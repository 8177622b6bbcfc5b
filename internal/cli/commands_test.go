package cli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docServer serves a published document tree over HTTP.
func docServer(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagstack.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("base_url: "+baseURL+"\nfallback_tag: root\n"), 0o600))
	return path
}

func TestShowCommandComposesAncestry(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/root/events.json": `[{"id":"e1","title":"Friday Raid","color":"red"}]`,
		"/leaf/conf.json":   `{"parent":"root"}`,
		"/leaf/events.json": `[{"id":"e1","title":"Friday Raid (EU)"}]`,
		"/leaf/tips.json":   `[{"id":"t1","text":"bring potions"}]`,
	})
	cfg := writeConfig(t, srv.URL)

	out, _, err := execute(t, "--config", cfg, "--tag", "leaf", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Tag: leaf")
	assert.Contains(t, out, "Friday Raid (EU)")
	assert.Contains(t, out, "bring potions")
}

func TestShowCommandDiffAnnotations(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/root/events.json": `[{"id":"e1","title":"Friday Raid","start":"18:00"}]`,
		"/leaf/conf.json":   `{"parent":"root"}`,
		"/leaf/events.json": `[{"id":"e1","start":"20:00"},{"id":"e2","title":"Leaf Social"}]`,
	})
	cfg := writeConfig(t, srv.URL)

	out, _, err := execute(t, "--config", cfg, "--tag", "leaf", "show", "--diff")
	require.NoError(t, err)
	assert.Contains(t, out, "[overrides: start]")
	assert.Contains(t, out, "[new in tag]")
}

func TestTagsCommandPrintsAncestry(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/mid/conf.json":  `{"parent":"root"}`,
		"/leaf/conf.json": `{"parent":"mid"}`,
	})
	cfg := writeConfig(t, srv.URL)

	out, _, err := execute(t, "--config", cfg, "--tag", "leaf", "tags")
	require.NoError(t, err)
	assert.Contains(t, out, "Tag: leaf")
	assert.Contains(t, out, "root -> mid -> leaf")
}

func TestDeltaCommandWritesFiles(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/root/events.json": `[{"id":"e1","title":"Friday Raid","color":"red"}]`,
		"/leaf/conf.json":   `{"parent":"root"}`,
		"/leaf/events.json": `[{"id":"e1","title":"Friday Raid (EU)","color":"red"}]`,
	})
	cfg := writeConfig(t, srv.URL)
	outDir := t.TempDir()

	_, _, err := execute(t, "--config", cfg, "--tag", "leaf", "delta", "--out", outDir)
	require.NoError(t, err)

	events, err := os.ReadFile(filepath.Join(outDir, "leaf", "events.json"))
	require.NoError(t, err)
	assert.Contains(t, string(events), `"title":"Friday Raid (EU)"`)
	assert.NotContains(t, string(events), `"color"`)

	conf, err := os.ReadFile(filepath.Join(outDir, "leaf", "conf.json"))
	require.NoError(t, err)
	assert.Contains(t, string(conf), `"parent":"root"`)
}

func TestDeltaCommandArchive(t *testing.T) {
	srv := docServer(t, map[string]string{
		"/leaf/events.json": `[{"id":"e1","title":"standalone"}]`,
	})
	cfg := writeConfig(t, srv.URL)
	archive := filepath.Join(t.TempDir(), "leaf.zip")

	_, _, err := execute(t, "--config", cfg, "--tag", "leaf", "delta", "--archive", archive)
	require.NoError(t, err)

	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestShowCommandRequiresBaseURL(t *testing.T) {
	_, _, err := execute(t, "show")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "leaf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaf", "conf.json"),
		[]byte(`{"parent":"root"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaf", "events.json"),
		[]byte(`[{"id":42,"title":"bad id type"}]`), 0o644))

	out, _, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "conf.json")
}

func TestValidateCommandPassesCleanTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "leaf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.json"),
		[]byte(`{"updated":"2026-01-01","domains":{"play.example.com":{"tag":"leaf"}},"defaultTag":"leaf"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaf", "conf.json"),
		[]byte(`{"updated":"2026-01-01","parent":"root"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leaf", "events.json"),
		[]byte(`[{"id":"e1","title":"ok"},{"id":"e2","deleted":true}]`), 0o644))

	out, _, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 failed")
}

func TestValidateCommandMissingDirIsCommandError(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
