package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/disjunction"
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/queryir"
	"github.com/stage-tech/basestar-sub001/internal/querysql"
)

// objectColumns are read for every object query.
var objectColumns = []string{queryir.ColumnID, queryir.ColumnVersion, queryir.ColumnBody}

// rowScanner abstracts sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(r rowScanner, schema string) (ir.Object, error) {
	var (
		obj  = ir.Object{Schema: schema}
		body []byte
	)
	if err := r.Scan(&obj.ID, &obj.Version, &body); err != nil {
		return ir.Object{}, err
	}
	data, err := decodeBody(body)
	if err != nil {
		return ir.Object{}, fmt.Errorf("object %s: %w", obj.ID, err)
	}
	obj.Data = data
	return obj, nil
}

// Get returns the object with the given id.
func (s *Store) Get(ctx context.Context, schema, id string) (ir.Object, error) {
	reg, err := s.lookup(schema)
	if err != nil {
		return ir.Object{}, fmt.Errorf("get: %w", err)
	}
	obj, err := s.getTx(ctx, s.db, reg, id)
	if err != nil {
		return ir.Object{}, fmt.Errorf("get %s: %w", schema, err)
	}
	return obj, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) getTx(ctx context.Context, q querier, reg *registered, id string) (ir.Object, error) {
	query := fmt.Sprintf(`SELECT "id", "version", "body" FROM %s WHERE "id" = ?`, querysql.QuoteIdent(reg.table))
	obj, err := scanObject(q.QueryRowContext(ctx, query, id), reg.schema.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Object{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return ir.Object{}, err
	}
	return obj, nil
}

// Scan returns every object of a schema ordered by id.
func (s *Store) Scan(ctx context.Context, schema string) ([]ir.Object, error) {
	reg, err := s.lookup(schema)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	objs, err := s.run(ctx, reg, queryir.Plan{Select: s.baseSelect(reg)})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", schema, err)
	}
	return objs, nil
}

// Filter returns the objects of a schema for which where is truthy,
// ordered by id.
//
// where is bound against an empty context so constant sub-expressions
// fold, then normalised into terms. Each term runs as one query with its
// indexable conjuncts pushed down; the rest is evaluated per row. An
// expression that normalises to more terms than the configured limit
// fails with disjunction.ErrTooManyTerms before any query runs.
func (s *Store) Filter(ctx context.Context, schema string, where expr.Expr) ([]ir.Object, error) {
	reg, err := s.lookup(schema)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	bound, err := expr.Bind(where, expr.Empty(), nil)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", schema, err)
	}
	terms, err := disjunction.NormalizeLimit(bound, s.termLimit)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", schema, err)
	}

	seen := make(map[string]bool)
	var out []ir.Object
	for _, term := range terms.Terms() {
		plan := queryir.Split(s.baseSelect(reg), reg.schema, term)
		objs, err := s.run(ctx, reg, plan)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", schema, err)
		}
		for _, obj := range objs {
			if !seen[obj.ID] {
				seen[obj.ID] = true
				out = append(out, obj)
			}
		}
	}

	// Each term is ordered by id; the union needs a final sort.
	slices.SortFunc(out, func(a, b ir.Object) int { return strings.Compare(a.ID, b.ID) })
	if out == nil {
		out = []ir.Object{}
	}

	slog.Debug("filter", "schema", schema, "terms", terms.Len(), "results", len(out))
	return out, nil
}

func (s *Store) baseSelect(reg *registered) queryir.Select {
	return queryir.Select{From: reg.table, Columns: objectColumns}
}

// run executes one plan and keeps the rows whose residual holds.
func (s *Store) run(ctx context.Context, reg *registered, plan queryir.Plan) ([]ir.Object, error) {
	query, args, err := s.sql.Compile(plan.Select)
	if err != nil {
		return nil, err
	}
	slog.Debug("query", "sql", query, "args", len(args), "residual", plan.Residual != nil)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []ir.Object{}
	for rows.Next() {
		obj, err := scanObject(rows, reg.schema.Name)
		if err != nil {
			return nil, err
		}
		ok, err := plan.Matches(expr.NewContext(obj.Record()))
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", obj.ID, err)
		}
		if ok {
			out = append(out, obj)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
