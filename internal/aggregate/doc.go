// Package aggregate implements group-level aggregate functions.
//
// Every aggregate supports batch evaluation over a stream of row contexts.
// Decomposable kinds (sum, avg, count, min, max, collect) also expose an
// incremental state contract used by materialised-view maintenance:
//
//	state := agg.Init()
//	state, _ = agg.Append(state, v)
//	state, _ = agg.Remove(state, v) // removable kinds only
//	result := agg.Finalize(state)
//
// States are plain ir values so they can be persisted and hashed. A state
// is owned by a single caller; concurrent Append/Remove on the same state
// requires external synchronisation. Partitioned aggregation merges
// partial states with Combine.
package aggregate
