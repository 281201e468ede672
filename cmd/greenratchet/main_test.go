package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against a database in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd(&out, &logs)
	cmd.SetArgs(append([]string{
		"--db-dsn", filepath.Join(dir, "test.db"),
		"--cache", "none",
		"--log-level", "warn",
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func seeded(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	out, err := run(t, dir, "seed")
	require.NoError(t, err)
	require.Contains(t, out, "Seeded 1 organizations, 2 connections, 4 usage records")
	return dir
}

func TestEvaluate_JSON(t *testing.T) {
	dir := seeded(t)
	out, err := run(t, dir, "evaluate", "--org", "org-demo",
		"--kind", "renewable_energy_percentage", "--target", "30",
		"--start", "2025-01-01", "--end", "2025-03-31", "--output", "json", "--emit")
	require.NoError(t, err)

	var report jsonReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.InDelta(t, 35.0, res.ActualValue, 1e-9)
	assert.Equal(t, kpi.StatusPassed, res.Status)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), res.DataSource.Window.End)
}

func TestEvaluate_DefinitionsFileTable(t *testing.T) {
	dir := seeded(t)
	defs := filepath.Join(dir, "kpis.yaml")
	require.NoError(t, os.WriteFile(defs, []byte(`kpis:
  - id: co2-q1
    type: CO2_EMISSIONS
    target: 5
  - id: low-carbon
    type: LOW_CARBON_REGION_PERCENTAGE
    target: 50
    start: 2025-01-01T00:00:00Z
    end: 2025-03-31T23:59:59Z
`), 0o600))

	out, err := run(t, dir, "evaluate", "--org", "org-demo", "--kpis", defs, "--start", "2025-01-01", "--end", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "co2-q1")
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "low-carbon")
	assert.Contains(t, out, "FAILED")
}

func TestEvaluate_Failures(t *testing.T) {
	dir := seeded(t)

	out, err := run(t, dir, "evaluate", "--org", "org-missing", "--kind", "CO2_EMISSIONS",
		"--start", "2025-01-01", "--end", "2025-03-31")
	assert.Error(t, err)
	assert.Contains(t, out, "NO_ACTIVE_CONNECTIONS")

	_, err = run(t, dir, "evaluate", "--org", "org-demo", "--kind", "NOISE",
		"--start", "2025-01-01", "--end", "2025-03-31")
	assert.Error(t, err)

	_, err = run(t, dir, "evaluate", "--org", "org-demo", "--kind", "CO2_EMISSIONS")
	assert.Error(t, err, "a window is required")

	_, err = run(t, dir, "evaluate", "--org", "org-demo")
	assert.Error(t, err, "either --kpis or --kind is required")
}

func TestTimeline_JSON(t *testing.T) {
	dir := seeded(t)
	out, err := run(t, dir, "timeline", "--org", "org-demo", "--metric", "energy",
		"--start", "2025-01-01", "--end", "2025-03-31", "--months", "1", "--output", "json")
	require.NoError(t, err)

	var tl kpi.Timeline
	require.NoError(t, json.Unmarshal([]byte(out), &tl))
	assert.Equal(t, []float64{60, 40, 300}, tl.Monthly)
	require.Len(t, tl.Points, 4)
	assert.True(t, tl.Points[3].IsProjected)
}

func TestTimeline_Table(t *testing.T) {
	dir := seeded(t)
	out, err := run(t, dir, "timeline", "--org", "org-demo", "--metric", "emissions",
		"--start", "2025-01-01", "--end", "2025-03-31", "--months", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03")
	assert.True(t, strings.Contains(out, "Trend:") || strings.Contains(out, "Not enough"))
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC), w.End)

	w, err = parseWindow("2025-01-01T00:00:00Z", "2025-02-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), w.End)

	w, err = parseWindow("", "")
	require.NoError(t, err)
	assert.Nil(t, w)

	_, err = parseWindow("2025-01-01", "")
	assert.Error(t, err)
	_, err = parseWindow("01/01/2025", "2025-01-31")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	_, err := run(t, dir, "--log-format", "xml", "seed")
	assert.Error(t, err)
}
