// Package disjunction rewrites boolean expressions into disjunctive normal
// form so that a storage backend able to push down only conjunctions can
// serve any filter by running one query per term.
//
// Normalization is exponential in the number of nested disjunctions.
// Callers accepting expressions from untrusted input should use
// NormalizeLimit.
package disjunction

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stage-tech/basestar-sub001/internal/expr"
)

// ErrTooManyTerms is returned by NormalizeLimit when the expansion would
// produce more terms than allowed.
var ErrTooManyTerms = errors.New("disjunction exceeds term limit")

// TermSet is an insertion-ordered set of conjunctions. Terms are compared
// structurally. An empty set is always false; a set holding the empty
// conjunction is always true.
type TermSet struct {
	keys  map[string]struct{}
	terms []expr.Expr
}

// NewTermSet returns a set holding terms, without duplicates.
func NewTermSet(terms ...expr.Expr) TermSet {
	var s TermSet
	for _, t := range terms {
		s.Add(t)
	}
	return s
}

// Add inserts term and reports whether it was not already present.
func (s *TermSet) Add(term expr.Expr) bool {
	key := expr.Key(term)
	if _, ok := s.keys[key]; ok {
		return false
	}
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	s.keys[key] = struct{}{}
	s.terms = append(s.terms, term)
	return true
}

// Contains reports whether a structurally equal term is in the set.
func (s TermSet) Contains(term expr.Expr) bool {
	_, ok := s.keys[expr.Key(term)]
	return ok
}

func (s TermSet) Len() int { return len(s.terms) }

// Terms returns the terms in insertion order.
func (s TermSet) Terms() []expr.Expr {
	out := make([]expr.Expr, len(s.terms))
	copy(out, s.terms)
	return out
}

// Strings returns the rendered terms in sorted order.
func (s TermSet) Strings() []string {
	out := make([]string, len(s.terms))
	for i, t := range s.terms {
		out[i] = expr.Render(t)
	}
	sort.Strings(out)
	return out
}

// Expr returns the disjunction of the terms. A single term is returned
// unwrapped.
func (s TermSet) Expr() expr.Expr {
	if len(s.terms) == 1 {
		return s.terms[0]
	}
	return expr.NewOr(s.Terms()...)
}

// Normalize returns the DNF term set of e.
func Normalize(e expr.Expr) TermSet {
	n := normalizer{}
	set, _ := n.normalize(e)
	return set
}

// NormalizeLimit is Normalize failing with ErrTooManyTerms as soon as an
// intermediate set would hold more than max terms. A max of zero or less
// disables the check.
func NormalizeLimit(e expr.Expr, max int) (TermSet, error) {
	n := normalizer{max: max}
	return n.normalize(e)
}

type normalizer struct {
	max int
}

func (n normalizer) check(size int) error {
	if n.max > 0 && size > n.max {
		return fmt.Errorf("%w: %d > %d", ErrTooManyTerms, size, n.max)
	}
	return nil
}

func (n normalizer) normalize(e expr.Expr) (TermSet, error) {
	switch node := e.(type) {
	case *expr.Or:
		var out TermSet
		for _, term := range node.Terms {
			set, err := n.normalize(term)
			if err != nil {
				return TermSet{}, err
			}
			for _, t := range set.terms {
				out.Add(t)
			}
			if err := n.check(out.Len()); err != nil {
				return TermSet{}, err
			}
		}
		return out, nil

	case *expr.And:
		return n.product(node.Terms)

	case *expr.ForAny:
		// Existential quantification distributes over disjunction:
		// (a || b) for any x of y == (a for any x of y) || (b for any x of y).
		body, err := n.normalize(node.Body)
		if err != nil {
			return TermSet{}, err
		}
		var out TermSet
		for _, t := range body.terms {
			out.Add(node.Copy([]expr.Expr{t, node.Source}))
		}
		return out, nil

	default:
		// Comparisons, calls and universal quantifiers are atoms.
		return NewTermSet(e), nil
	}
}

// product distributes a conjunction over the term sets of its operands.
func (n normalizer) product(operands []expr.Expr) (TermSet, error) {
	conjuncts := [][]expr.Expr{nil}
	for _, operand := range operands {
		set, err := n.normalize(operand)
		if err != nil {
			return TermSet{}, err
		}
		if set.Len() == 0 {
			return TermSet{}, nil
		}
		if err := n.check(len(conjuncts) * set.Len()); err != nil {
			return TermSet{}, err
		}
		next := make([][]expr.Expr, 0, len(conjuncts)*set.Len())
		for _, prefix := range conjuncts {
			for _, t := range set.terms {
				next = append(next, appendConjunct(prefix, t))
			}
		}
		conjuncts = next
	}

	var out TermSet
	for _, c := range conjuncts {
		out.Add(conjunction(c))
	}
	return out, nil
}

// appendConjunct returns a new slice of prefix followed by t, with the
// terms of a nested And inlined.
func appendConjunct(prefix []expr.Expr, t expr.Expr) []expr.Expr {
	out := make([]expr.Expr, len(prefix), len(prefix)+1)
	copy(out, prefix)
	if and, ok := t.(*expr.And); ok {
		return append(out, and.Terms...)
	}
	return append(out, t)
}

func conjunction(terms []expr.Expr) expr.Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return expr.NewAnd(terms...)
}
