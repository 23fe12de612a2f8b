package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a fresh store. Flow steps evaluate
// expressions, normalise filters, write objects and read views; each step
// leaves one event in the trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a CUE file or directory declaring schemas and views.
	// Relative paths are resolved against the scenario file location.
	// Scenarios that only evaluate expressions may omit it.
	Catalog string `yaml:"catalog,omitempty"`

	// Setup writes objects before the flow. Setup steps must succeed and
	// are not traced.
	Setup []FlowStep `yaml:"setup,omitempty"`

	// Flow is the traced sequence of steps.
	Flow []FlowStep `yaml:"flow"`

	// Assertions run after the flow against the trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// IDPrefix prefixes generated object ids. Defaults to "obj".
	IDPrefix string `yaml:"id_prefix,omitempty"`
}

// FlowStep is one operation. Exactly one of the operation fields is set.
type FlowStep struct {
	// Eval evaluates an expression against Vars.
	Eval string `yaml:"eval,omitempty"`

	// Bind binds an expression against Vars and renders the result.
	Bind string `yaml:"bind,omitempty"`

	// DNF normalises an expression and yields its rendered terms.
	DNF string `yaml:"dnf,omitempty"`

	// Create, Update and Delete name the schema written to.
	Create string `yaml:"create,omitempty"`
	Update string `yaml:"update,omitempty"`
	Delete string `yaml:"delete,omitempty"`

	// Filter names the schema queried with Where and yields matching ids.
	Filter string `yaml:"filter,omitempty"`

	// View yields the current rows of a materialised view.
	View string `yaml:"view,omitempty"`

	Where   string         `yaml:"where,omitempty"`
	ID      string         `yaml:"id,omitempty"`
	Version int64          `yaml:"version,omitempty"`
	Vars    map[string]any `yaml:"vars,omitempty"`
	Data    map[string]any `yaml:"data,omitempty"`

	// Expect checks the step output. If nil, any successful output passes.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Value is compared with the step output using value equality, so
	// 1 and 1.0 match. A YAML null expects undefined.
	Value yaml.Node `yaml:"value,omitempty"`

	// Error expects the step to fail with a message containing it.
	Error string `yaml:"error,omitempty"`
}

// HasValue reports whether the clause sets value, including to null.
func (e *ExpectClause) HasValue() bool {
	return e.Value.Kind != 0
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_state and view_row.
	Type string `yaml:"type"`

	// Op is a step operation name (used by trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Input is the step input (used by trace_contains, trace_order).
	Input string `yaml:"input,omitempty"`

	// Inputs is the expected input order (used by trace_order).
	Inputs []string `yaml:"inputs,omitempty"`

	// Count is the expected number of events (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Schema and ID locate an object (used by final_state).
	Schema string `yaml:"schema,omitempty"`
	ID     string `yaml:"id,omitempty"`

	// View and Group locate a view row (used by view_row). Group matches
	// the row's group-by columns; it may be empty for an ungrouped view.
	View  string         `yaml:"view,omitempty"`
	Group map[string]any `yaml:"group,omitempty"`

	// Absent expects the object or row not to exist.
	Absent bool `yaml:"absent,omitempty"`

	// Expect contains expected field values, subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertViewRow       = "view_row"
)

// Step operation names, as recorded in the trace.
const (
	OpEval   = "eval"
	OpBind   = "bind"
	OpDNF    = "dnf"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpFilter = "filter"
	OpView   = "view"
)

// Op returns the operation the step performs and its primary input, or
// an empty op when the step sets no operation or more than one.
func (s FlowStep) Op() (op, input string) {
	set := 0
	for _, c := range []struct{ op, input string }{
		{OpEval, s.Eval},
		{OpBind, s.Bind},
		{OpDNF, s.DNF},
		{OpCreate, s.Create},
		{OpUpdate, s.Update},
		{OpDelete, s.Delete},
		{OpFilter, s.Filter},
		{OpView, s.View},
	} {
		if c.input != "" {
			op, input = c.op, c.input
			set++
		}
	}
	if set != 1 {
		return "", ""
	}
	return op, input
}

// LoadScenario reads and parses a scenario YAML file. The catalog path is
// resolved relative to the file. Returns an error if the file doesn't
// exist, is malformed, contains unknown fields or is missing required
// fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the catalog path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) && basePath != "" {
		scenario.Catalog = filepath.Join(basePath, scenario.Catalog)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); os.IsNotExist(err) {
			return fmt.Errorf("catalog not found: %s", s.Catalog)
		}
	}

	for i, step := range s.Setup {
		op, _ := step.Op()
		switch op {
		case OpCreate, OpUpdate, OpDelete:
		case "":
			return fmt.Errorf("setup[%d]: exactly one operation is required", i)
		default:
			return fmt.Errorf("setup[%d]: %s is not a write operation", i, op)
		}
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step, s.Catalog != ""); err != nil {
			return err
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step, s.Catalog != ""); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields an operation needs.
func validateStep(where string, step FlowStep, hasCatalog bool) error {
	op, _ := step.Op()
	switch op {
	case "":
		return fmt.Errorf("%s: exactly one operation is required", where)
	case OpCreate, OpUpdate, OpDelete, OpFilter, OpView:
		if !hasCatalog {
			return fmt.Errorf("%s: %s requires a catalog", where, op)
		}
	}

	switch op {
	case OpCreate, OpUpdate:
		if step.Data == nil {
			return fmt.Errorf("%s: data is required for %s (use empty map if no fields)", where, op)
		}
	}
	switch op {
	case OpUpdate, OpDelete:
		if step.ID == "" {
			return fmt.Errorf("%s: id is required for %s", where, op)
		}
		if step.Version <= 0 {
			return fmt.Errorf("%s: version is required for %s", where, op)
		}
	}
	if op == OpFilter && step.Where == "" {
		return fmt.Errorf("%s: where is required for filter", where)
	}

	if step.Expect != nil && step.Expect.HasValue() && step.Expect.Error != "" {
		return fmt.Errorf("%s.expect: value and error are mutually exclusive", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Inputs) == 0 {
			return fmt.Errorf("assertions[%d]: inputs list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Schema == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: schema and id are required for final_state", index)
		}
		if len(a.Expect) == 0 && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertViewRow:
		if a.View == "" {
			return fmt.Errorf("assertions[%d]: view is required for view_row", index)
		}
		if len(a.Expect) == 0 && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for view_row", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
