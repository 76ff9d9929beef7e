package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenarios copies the shared scenario files into a temp directory so
// golden files can be written without touching testdata.
func copyScenarios(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(scenariosDir, name+".yaml"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), data, 0o644))
	}
	return dir
}

func testResult(t *testing.T, out string) TestResult {
	t.Helper()
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg")
}

func TestTestCommandNonExistentExploresDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/explores", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "explores directory not found")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", exploresDir, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, "test", exploresDir, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", exploresDir, t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 0, testResult(t, out).Total)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := execute(t, "test", exploresDir, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ table_calculation")
	assert.Contains(t, out, "✓ compile_errors")
	assert.Contains(t, out, "✓ additional_metrics")
	assert.Contains(t, out, "✓ bigquery_quoting")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", exploresDir, scenariosDir, "--filter", "table_*")
	require.NoError(t, err)

	result := testResult(t, out)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "table_calculation", result.Scenarios[0].Name)
}

func TestTestCommandGoldenFiles(t *testing.T) {
	dir := copyScenarios(t, "table_calculation")

	out, err := execute(t, "test", exploresDir, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ table_calculation (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "table_calculation.golden"))
	require.NoError(t, err)
	harnessGolden, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "table_calculation.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(harnessGolden), string(golden))

	_, err = execute(t, "test", exploresDir, dir)
	require.NoError(t, err)

	tampered := bytes.Replace(golden, []byte("1.1"), []byte("1.2"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "table_calculation.golden"), tampered, 0o644))

	out, err = execute(t, "test", exploresDir, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: Expects an error that does not happen
explores: unused
explore: orders
flow:
  - name: ok_query
    query:
      dimensions: []
      metrics: [orders_amount]
    expect:
      error: unresolved_reference
`), 0o644))

	out, err := execute(t, "--format", "json", "test", exploresDir, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	result := testResult(t, out)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.Equal(t, []string{"flow[0] ok_query: expected unresolved_reference error, compile succeeded"}, result.Scenarios[0].Errors)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0o644))

	out, err := execute(t, "test", exploresDir, dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestHelpText(t *testing.T) {
	out, err := execute(t, "test", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "explores-dir")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "orders-calc.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "orders-metric.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "events-calc.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "orders-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
}
