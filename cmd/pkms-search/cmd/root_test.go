package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashishacharya123/PKMS-sub000/internal/search"
)

// runCLI executes the CLI against a dedicated data directory and returns
// its combined output.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestVersionJSON(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
}

func TestSearchRequiresOwner(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "search", "budget")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}

func TestNotifyThenSearch(t *testing.T) {
	dataDir := t.TempDir()

	out, err := runCLI(t, dataDir, "notify", "note", "n1",
		"--owner", "alice",
		"--title", "Quarterly Budget Report",
		"--body", "Quarterly budget numbers for the finance review",
		"--tag", "finance", "--tag", "2025")
	require.NoError(t, err)
	assert.Contains(t, out, "upsert note/n1")

	out, err = runCLI(t, dataDir, "search", "budget", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarterly Budget Report")
	assert.Contains(t, out, "finance")

	out, err = runCLI(t, dataDir, "search", "budget", "--owner", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestSearchJSONOutput(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "notify", "task", "t1",
		"--owner", "alice",
		"--title", "File taxes",
		"--body", "Collect receipts and file the annual taxes")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "search", "taxes", "--owner", "alice", "--format", "json")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "t1", resp.Results[0].ID)
	assert.Equal(t, search.ModeHybrid, resp.Mode, "one candidate is below the recall threshold")
}

func TestFuzzySearchFlag(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "notify", "document", "d1",
		"--owner", "alice",
		"--title", "Quarterly Budget Report",
		"--body", "Quarterly budget numbers",
		"--filename", "quarterly-budget-report.pdf")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "search", "budjet",
		"--owner", "alice", "--fuzzy", "--threshold", "60", "--format", "json")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, search.ModeFuzzy, resp.Mode)
}

func TestNotifyDelete(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "notify", "note", "n1",
		"--owner", "alice", "--title", "Standup notes", "--body", "Talked about the deploy")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "notify", "note", "n1", "--owner", "alice", "--delete")
	require.NoError(t, err)
	assert.Contains(t, out, "delete note/n1")

	out, err = runCLI(t, dataDir, "search", "standup", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestNotifyBatchFile(t *testing.T) {
	dataDir := t.TempDir()

	batch := `[
		{"type": "note", "id": "n1", "owner": "alice", "title": "Deploy checklist", "body": "Steps for the staging deploy"},
		{"type": "task", "id": "t1", "owner": "alice", "title": "Fix deploy pipeline", "body": "The deploy job times out", "tags": ["infra"]}
	]`
	file := filepath.Join(t.TempDir(), "changes.json")
	require.NoError(t, os.WriteFile(file, []byte(batch), 0o644))

	out, err := runCLI(t, dataDir, "notify", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 2 changes")

	out, err = runCLI(t, dataDir, "search", "deploy", "--owner", "alice", "--format", "json")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Results, 2)
}

func TestSuggestCommand(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "notify", "note", "n1",
		"--owner", "alice", "--title", "Quarterly Budget Report", "--body", "numbers")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "suggest", "quarterly bud", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarterly Budget Report")
}

func TestStatsCommand(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, dataDir, "notify", "note", "n1",
		"--owner", "alice", "--title", "Standup notes", "--body", "Talked about the deploy")
	require.NoError(t, err)

	_, err = runCLI(t, dataDir, "search", "standup", "--owner", "alice")
	require.NoError(t, err)

	out, err := runCLI(t, dataDir, "stats", "--json")
	require.NoError(t, err)

	var stats struct {
		DocumentCounts map[string]int   `json:"document_counts"`
		ModeCounts     map[string]int64 `json:"mode_counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.DocumentCounts["note"])
	assert.Equal(t, int64(1), stats.ModeCounts["hybrid"], "one candidate is below the recall threshold")
}

func TestConfigShow(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default_limit: 20")
	assert.Contains(t, out, "fuzzy_blend: 0.6")
}

func TestConfigInit(t *testing.T) {
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	out, err := runCLI(t, t.TempDir(), "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "pkms-search.yaml")

	data, err := os.ReadFile("pkms-search.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "recall_threshold")

	_, err = runCLI(t, t.TempDir(), "config", "init")
	require.Error(t, err)

	_, err = runCLI(t, t.TempDir(), "config", "init", "--force")
	require.NoError(t, err)
}

func TestInvalidTypeRejected(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "search", "budget", "--owner", "alice", "--type", "bogus")
	require.Error(t, err)
}
