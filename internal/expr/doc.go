// Package expr implements the basestar expression language: an immutable
// expression tree, the evaluation context, binding with constant folding,
// and the evaluator.
//
// Trees are built from pointer nodes implementing the sealed Expr
// interface. Every transform in this package (Bind, Rewrite, Copy) returns
// the input node itself when nothing changed, so callers can detect a
// no-op with ==. Because nodes are never mutated, a tree may be evaluated
// from many goroutines at once.
//
// Evaluation dispatches on value kinds through the coercion matrix in
// package ir. Missing variables are ir.Undefined rather than errors:
//
//	arithmetic with Undefined     -> Undefined
//	comparisons and in            -> false
//	a ?? b                        -> b when a is Undefined
//	&&, ||, !                     -> truthiness (Undefined is false)
//
// Method and function calls go through Context.Call, so the evaluator
// never inspects host types.
package expr
