package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/parser"
)

// CycleError reports derived fields that depend on each other.
type CycleError struct {
	Schema string   `json:"schema"`
	Path   []string `json:"path"` // e.g. ["a", "b", "a"]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("schema %s: derived fields form a cycle: %s", e.Schema, strings.Join(e.Path, " → "))
}

// DerivedOrder returns the derived fields of schema in evaluation order:
// each field comes after the derived fields it reads.
func DerivedOrder(schema ir.ObjectSchema) ([]string, error) {
	graph, err := buildDependencyGraph(schema)
	if err != nil {
		return nil, err
	}
	if cycles := cyclesOf(schema.Name, graph); len(cycles) > 0 {
		return nil, cycles[0]
	}

	// Tarjan emits a component only after everything reachable from it,
	// so dependencies come first.
	var order []string
	for _, scc := range tarjanSCC(graph) {
		order = append(order, scc...)
	}
	return order, nil
}

// AnalyzeCycles reports every dependency cycle among derived fields.
// Derived expressions that fail to parse are skipped; Validate reports
// them separately.
func AnalyzeCycles(schema ir.ObjectSchema) []*CycleError {
	graph := make(dependencyGraph)
	for name, src := range schema.Derived {
		e, err := parser.Parse(src)
		if err != nil {
			graph[name] = nil
			continue
		}
		graph[name] = dependencies(schema, e)
	}
	return cyclesOf(schema.Name, graph)
}

// dependencyGraph maps a derived field to the derived fields it reads.
type dependencyGraph map[string][]string

func buildDependencyGraph(schema ir.ObjectSchema) (dependencyGraph, error) {
	graph := make(dependencyGraph, len(schema.Derived))
	for name, src := range schema.Derived {
		e, err := parser.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("schema %s: derived field %s: %w", schema.Name, name, err)
		}
		graph[name] = dependencies(schema, e)
	}
	return graph, nil
}

func dependencies(schema ir.ObjectSchema, e expr.Expr) []string {
	var deps []string
	for _, p := range expr.Paths(e) {
		root := p.Root()
		if _, ok := schema.Derived[root]; ok && !slices.Contains(deps, root) {
			deps = append(deps, root)
		}
	}
	slices.Sort(deps)
	return deps
}

func cyclesOf(schemaName string, graph dependencyGraph) []*CycleError {
	var cycles []*CycleError
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, &CycleError{Schema: schemaName, Path: cyclePath(scc, graph)})
		}
	}
	return cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the output is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of a component: pop it.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cyclePath walks a component from its smallest member back to itself.
func cyclePath(scc []string, graph dependencyGraph) []string {
	members := slices.Clone(scc)
	slices.Sort(members)
	start := members[0]

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		for _, neighbor := range graph[current] {
			if neighbor == start || (slices.Contains(members, neighbor) && !visited[neighbor]) {
				next = neighbor
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
