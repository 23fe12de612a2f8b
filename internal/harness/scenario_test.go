package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeScenario writes content to name inside dir and returns its path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "orders.cue", `schema: Order: fields: status: string`)
	path := writeScenario(t, dir, "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
catalog: orders.cue
setup:
  - create: Order
    data: { status: open }
flow:
  - eval: "1 + 2"
    expect: { value: 3 }
  - filter: Order
    where: 'status == "open"'
assertions:
  - type: trace_contains
    op: eval
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "orders.cue"), scenario.Catalog)
	require.Len(t, scenario.Setup, 1)
	require.Len(t, scenario.Flow, 2)
	assert.Len(t, scenario.Assertions, 1)

	op, input := scenario.Flow[0].Op()
	assert.Equal(t, OpEval, op)
	assert.Equal(t, "1 + 2", input)
	require.NotNil(t, scenario.Flow[0].Expect)
	assert.True(t, scenario.Flow[0].Expect.HasValue())
	assert.Equal(t, "open", scenario.Setup[0].Data["status"])
}

func TestLoadScenario_NullExpectation(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: nulls
description: "null is an expectation"
flow:
  - eval: "missing"
    expect: { value: null }
  - eval: "1"
    expect: { error: "boom" }
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.True(t, scenario.Flow[0].Expect.HasValue())
	assert.False(t, scenario.Flow[1].Expect.HasValue())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: typo
description: "assertion instead of assertions"
flow:
  - eval: "1"
assertion: []
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_BasePath(t *testing.T) {
	specs := t.TempDir()
	writeScenario(t, specs, "orders.cue", `schema: Order: fields: status: string`)
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: based
description: "catalog resolved against the base path"
catalog: orders.cue
flow:
  - eval: "1"
`)

	scenario, err := LoadScenarioWithBasePath(path, specs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(specs, "orders.cue"), scenario.Catalog)
}

func TestValidateScenario(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "orders.cue")
	require.NoError(t, os.WriteFile(catalog, []byte(`schema: Order: fields: status: string`), 0644))

	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Catalog:     catalog,
			Flow:        []FlowStep{{Eval: "1"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"empty flow", func(s *Scenario) { s.Flow = nil }, "flow list is required"},
		{"missing catalog", func(s *Scenario) { s.Catalog = "/nonexistent/catalog.cue" }, "catalog not found"},
		{"no operation", func(s *Scenario) { s.Flow = []FlowStep{{Where: "x"}} }, "flow[0]: exactly one operation is required"},
		{"two operations", func(s *Scenario) { s.Flow = []FlowStep{{Eval: "1", DNF: "a"}} }, "flow[0]: exactly one operation is required"},
		{"write needs catalog", func(s *Scenario) {
			s.Catalog = ""
			s.Flow = []FlowStep{{Create: "Order", Data: map[string]any{}}}
		}, "flow[0]: create requires a catalog"},
		{"create needs data", func(s *Scenario) { s.Flow = []FlowStep{{Create: "Order"}} }, "data is required for create"},
		{"update needs id", func(s *Scenario) {
			s.Flow = []FlowStep{{Update: "Order", Version: 1, Data: map[string]any{}}}
		}, "id is required for update"},
		{"delete needs version", func(s *Scenario) { s.Flow = []FlowStep{{Delete: "Order", ID: "a"}} }, "version is required for delete"},
		{"filter needs where", func(s *Scenario) { s.Flow = []FlowStep{{Filter: "Order"}} }, "where is required for filter"},
		{"setup must write", func(s *Scenario) { s.Setup = []FlowStep{{Eval: "1"}} }, "setup[0]: eval is not a write operation"},
		{"value and error", func(s *Scenario) {
			s.Flow[0].Expect = &ExpectClause{Error: "x"}
			s.Flow[0].Expect.Value.Kind = yaml.ScalarNode
		}, "value and error are mutually exclusive"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "nope"}} }, `unknown assertion type "nope"`},
		{"trace_count without op", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceCount}} }, "op is required for trace_count"},
		{"trace_order without inputs", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceOrder}} }, "inputs list is required"},
		{"final_state without id", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertFinalState, Schema: "Order", Expect: map[string]any{"a": 1}}}
		}, "schema and id are required"},
		{"final_state without expect", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertFinalState, Schema: "Order", ID: "a"}}
		}, "expect or absent is required"},
		{"view_row without view", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertViewRow}} }, "view is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
