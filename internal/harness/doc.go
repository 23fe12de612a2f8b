// Package harness runs scripted expression and storage scenarios.
//
// A scenario loads a CUE catalog into a fresh in-memory store, writes
// objects, and then steps through expression evaluation, binding,
// disjunctive normalisation, filtered queries and materialised view
// reads. Every flow step leaves one event in the trace; traces are
// compared against golden snapshots.
//
// # Scenario Format
//
//	name: order_revenue
//	description: "Revenue view follows order updates"
//	catalog: catalogs/orders.cue
//	setup:
//	  - create: Order
//	    data: { status: open, total: 50, customer: ann }
//	flow:
//	  - eval: "total * 2"
//	    vars: { total: 21 }
//	    expect: { value: 42 }
//	  - dnf: "a && (b || c)"
//	    expect: { value: ["a && b", "a && c"] }
//	  - update: Order
//	    id: obj-0001
//	    version: 1
//	    data: { status: paid, total: 50, customer: ann }
//	  - filter: Order
//	    where: "status == \"paid\""
//	    expect: { value: [obj-0001] }
//	  - eval: "1 / 0"
//	    expect: { error: "division by zero" }
//	assertions:
//	  - type: final_state
//	    schema: Order
//	    id: obj-0001
//	    expect: { version: 2, status: paid }
//	  - type: view_row
//	    view: Revenue
//	    group: { status: paid }
//	    expect: { revenue: 50 }
//
// # Step Outputs
//
//   - eval: the value, with a null expected value matching undefined
//   - bind: the rendered bound expression
//   - dnf: the rendered terms, sorted
//   - create, update: the stored record including derived fields
//   - delete: undefined
//   - filter: the matching ids in id order
//   - view: the view rows ordered by group values
//
// # Assertion Types
//
//   - trace_contains: a successful step with the given op (and input)
//   - trace_order: steps with the given inputs appear in order
//   - trace_count: the op appears exactly N times
//   - final_state: an object's record holds the expected fields
//   - view_row: the row of a view group holds the expected columns
//
// # Deterministic Testing
//
// Object ids come from testutil.SequentialIDs ("obj-0001", ...) unless
// a step supplies one, and change sequences start at 1 for every run,
// so identical scenarios produce identical traces.
package harness
