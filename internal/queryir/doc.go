// Package queryir is the storage pushdown representation of a filter.
//
// A filter expression is normalised into DNF by the disjunction package.
// Each conjunction is then split here into the part a storage backend can
// answer from indexed columns and a residual expression that is evaluated
// in process against the candidate rows:
//
//	[filter expr] → [DNF terms] → Split → Plan{Select, Residual}
//	                                          │        └→ expr.Evaluate per row
//	                                          └→ querysql → SQLite
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods so that backend
// compilers can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	case In:
//	case And:
//	}
//
// PUSHDOWN RULES:
//
// A conjunct is pushed down only when the backend answers it exactly as
// the evaluator would:
//   - one side is a single-segment name of an indexed column
//   - the other side is a defined scalar constant of the column's type
//   - the operator is a comparison, or in with a constant sequence
//
// Comparisons against a missing column value are false in both worlds,
// which is what lets SQL NULL stand in for Undefined. Kind mismatches stay
// residual so that type errors surface from the evaluator.
package queryir
