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

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandNonExistentCatalogDir(t *testing.T) {
	_, _, err := execute(t, "test", t.TempDir(), "--catalog-dir", "/nonexistent/catalogs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "catalog directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir(), "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "test", harnessScenarios, "--golden-dir", harnessGolden)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ expressions")
	assert.Contains(t, out, "✓ order_revenue")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(t, "test", harnessScenarios, "--golden-dir", harnessGolden, "--filter", "order_*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "order_revenue", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandUpdateGolden(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	out, _, err := execute(t, "test", harnessScenarios, "--golden-dir", goldenDir, "--update", "--filter", "expressions")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ expressions (golden updated)")

	written, err := os.ReadFile(filepath.Join(goldenDir, "expressions.golden"))
	require.NoError(t, err)
	stored, err := os.ReadFile(filepath.Join(harnessGolden, "expressions.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(bytes.TrimSpace(stored)), string(written))

	// The regenerated file is accepted on the next run.
	_, _, err = execute(t, "test", harnessScenarios, "--golden-dir", goldenDir, "--filter", "expressions")
	require.NoError(t, err)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sum.yaml", `
name: sum
description: "one step"
flow:
  - eval: "1 + 1"
`)
	writeFile(t, dir, "golden/sum.golden", `{"scenario_name":"sum","trace":[]}`)

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ sum")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", `
name: bad
description: "expectation fails"
flow:
  - eval: "1 + 1"
    expect: { value: 3 }
`)
	writeFile(t, dir, "broken.yaml", "name: [\n")

	out, _, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  CLIError   `json:"error"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "bad")
	assert.Contains(t, byName["bad"].Errors[0], "expected 3, got 2")
	require.Contains(t, byName, "broken.yaml")
	assert.Contains(t, byName["broken.yaml"].Errors[0], "failed to load scenario")
}

func TestTestCommandCatalogDir(t *testing.T) {
	catalogs := t.TempDir()
	writeFile(t, catalogs, "orders.cue", ordersCatalog)

	scenarios := t.TempDir()
	writeFile(t, scenarios, "orders.yaml", `
name: orders
description: "catalog resolved against --catalog-dir"
catalog: orders.cue
flow:
  - create: Order
    data: { status: open, total: 150.5, customer: ann }
  - filter: Order
    where: "large"
    expect: { value: [obj-0001] }
`)

	out, _, err := execute(t, "test", scenarios, "--catalog-dir", catalogs)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ orders")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, "nested/c.yaml", "")
	writeFile(t, dir, "golden/d.yaml", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "b.yml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "order_create.yaml", "")
	writeFile(t, dir, "order_delete.yaml", "")
	writeFile(t, dir, "view_rows.yaml", "")

	files, err := findScenarioFiles(dir, "order_*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "order_revenue.golden"),
		goldenFilePath(filepath.Join("scenarios", "golden"), "order_revenue"))
}
