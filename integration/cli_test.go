//go:build basic

// Package integration contains end-to-end tests of the querymancer binary.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteEnv(dir string) []string {
	return []string{
		"QUERYMANCER_DB_CONNECT=" + filepath.Join(dir, "shop.db"),
		"QUERYMANCER_MONITOR_PATH=" + filepath.Join(dir, "metrics.json"),
		"QUERYMANCER_COLOR=no",
	}
}

func TestRouteFeedbackAndHistory(t *testing.T) {
	dir := t.TempDir()
	env := sqliteEnv(dir)

	out, err := runCommand(t, dir, env, "route", "--output", "json", "I would like to know SELECT * FROM orders")
	require.NoError(t, err)
	var req struct {
		RefinedQuery string `json:"refined_query"`
		Choice       struct {
			Backend string `json:"backend"`
		} `json:"choice"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	assert.Equal(t, "SELECT * FROM orders", req.RefinedQuery)
	assert.Equal(t, "fast", req.Choice.Backend)

	_, err = runCommand(t, dir, env, "feedback", "I would like to know SELECT * FROM orders", "--rating", "5")
	require.NoError(t, err)

	out, err = runCommand(t, dir, env, "stats", "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"ratings": [`)

	out, err = runCommand(t, dir, env, "history", "--output", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "selection")
	assert.Contains(t, out, "feedback")
}

func TestAnalyzeAndRefine(t *testing.T) {
	dir := t.TempDir()
	env := sqliteEnv(dir)

	out, err := runCommand(t, dir, env, "analyze", "--output", "json", "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Contains(t, out, `"overall"`)

	out, err = runCommand(t, dir, env, "refine", "Could", "you", "please", "tell", "me", "the", "total", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "the total sales")

	// Neither command records anything.
	_, err = os.Stat(filepath.Join(dir, "metrics.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSQLAndExport(t *testing.T) {
	dir := t.TempDir()
	env := sqliteEnv(dir)

	for _, stmt := range []string{
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)",
		"INSERT INTO orders (total) VALUES (10.5), (99.0)",
	} {
		_, err := runCommand(t, dir, env, "sql", stmt)
		require.NoError(t, err)
	}
	out, err := runCommand(t, dir, env, "sql", "SELECT COUNT(*) FROM orders")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows in")

	out, err = runCommand(t, dir, env, "advise", "SELECT * FROM orders WHERE total = 10.5")
	require.NoError(t, err)
	assert.Contains(t, out, "idx_total")

	_, err = runCommand(t, dir, env, "route", "SELECT * FROM orders")
	require.NoError(t, err)
	exportDir := filepath.Join(dir, "export")
	_, err = runCommand(t, dir, env, "export", "--output-file", exportDir)
	require.NoError(t, err)
	for _, name := range []string{"selections.parquet", "feedback.parquet", "calibrations.parquet"} {
		_, err := os.Stat(filepath.Join(exportDir, name))
		assert.NoError(t, err, name)
	}
}
