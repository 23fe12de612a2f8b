package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/compiler"
	"github.com/stage-tech/basestar-sub001/internal/expr"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/parser"
	"github.com/stage-tech/basestar-sub001/internal/querysql"
)

// registered is a schema with its table name and parsed derived fields.
type registered struct {
	schema       ir.ObjectSchema
	table        string
	derivedOrder []string
	derived      map[string]expr.Expr
}

// TableName returns the object table for a schema.
func TableName(schema string) string {
	return "obj_" + schema
}

func newRegistered(schema ir.ObjectSchema) (*registered, error) {
	if errs := compiler.Validate(&schema); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("register %s: %s", schema.Name, strings.Join(msgs, "; "))
	}

	order, err := compiler.DerivedOrder(schema)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", schema.Name, err)
	}
	derived := make(map[string]expr.Expr, len(order))
	for _, name := range order {
		e, err := parser.Parse(schema.Derived[name])
		if err != nil {
			return nil, fmt.Errorf("register %s: derived field %s: %w", schema.Name, name, err)
		}
		derived[name] = e
	}

	return &registered{
		schema:       schema,
		table:        TableName(schema.Name),
		derivedOrder: order,
		derived:      derived,
	}, nil
}

// Register validates schema, creates its table and indexes and records
// the definition. Registering an identical definition again is a no-op;
// a different definition under the same name is an error.
func (s *Store) Register(ctx context.Context, schema ir.ObjectSchema) error {
	reg, err := newRegistered(schema)
	if err != nil {
		return err
	}

	def, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("register %s: %w", schema.Name, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("register %s: begin tx: %w", schema.Name, err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT definition FROM schemas WHERE name = ?`, schema.Name).Scan(&existing)
	switch {
	case err == nil:
		if existing != string(def) {
			return fmt.Errorf("register %s: already registered with a different definition", schema.Name)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO schemas (name, definition) VALUES (?, ?)`, schema.Name, string(def)); err != nil {
			return fmt.Errorf("register %s: %w", schema.Name, err)
		}
	default:
		return fmt.Errorf("register %s: %w", schema.Name, err)
	}

	for _, stmt := range tableDDL(reg) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("register %s: %w", schema.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("register %s: commit: %w", schema.Name, err)
	}

	s.mu.Lock()
	s.schemas[schema.Name] = reg
	s.mu.Unlock()

	slog.Info("schema registered", "schema", schema.Name, "table", reg.table, "indexed", schema.Indexed)
	return nil
}

// tableDDL returns the statements creating the object table and one
// index per indexed field.
func tableDDL(reg *registered) []string {
	table := querysql.QuoteIdent(reg.table)
	cols := []string{
		`"id" TEXT PRIMARY KEY`,
		`"version" INTEGER NOT NULL`,
	}
	for _, name := range reg.schema.Indexed {
		typ, _ := reg.schema.FieldType(name)
		cols = append(cols, querysql.QuoteIdent(name)+" "+sqlType(typ))
	}
	cols = append(cols, `"body" BLOB NOT NULL`)

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", ")),
	}
	for _, name := range reg.schema.Indexed {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			querysql.QuoteIdent("idx_"+reg.schema.Name+"_"+name), table, querysql.QuoteIdent(name)))
	}
	return stmts
}

// loadSchemas restores the registry from the schemas table.
func (s *Store) loadSchemas(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT definition FROM schemas ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}
		var schema ir.ObjectSchema
		if err := json.Unmarshal([]byte(def), &schema); err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}
		reg, err := newRegistered(schema)
		if err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}
		s.schemas[schema.Name] = reg
	}
	return rows.Err()
}

// Schema returns a registered schema.
func (s *Store) Schema(name string) (ir.ObjectSchema, bool) {
	reg, err := s.lookup(name)
	if err != nil {
		return ir.ObjectSchema{}, false
	}
	return reg.schema, true
}

// Schemas returns the registered schema names in sorted order.
func (s *Store) Schemas() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Store) lookup(name string) (*registered, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return reg, nil
}

// prepare checks data against the schema and computes derived fields.
// Supplied values for derived fields are ignored and recomputed. The
// returned mapping is a copy; data is not modified.
func (reg *registered) prepare(id string, version int64, data ir.IRObject) (ir.IRObject, error) {
	out := make(ir.IRObject, len(data)+len(reg.derived))
	for _, name := range data.SortedKeys() {
		v := data[name]
		if _, ok := reg.derived[name]; ok {
			continue
		}
		typ, ok := reg.schema.FieldType(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrInvalidObject, reg.schema.Name, name)
		}
		if !ir.Accepts(typ, v) {
			return nil, fmt.Errorf("%w: field %q of type %s cannot hold %s", ErrInvalidObject, name, typ, ir.KindOf(v))
		}
		if !ir.IsUndefined(v) {
			out[name] = v
		}
	}

	if len(reg.derivedOrder) == 0 {
		return out, nil
	}
	record := ir.Object{ID: id, Schema: reg.schema.Name, Version: version, Data: out}.Record()
	for _, name := range reg.derivedOrder {
		v, err := expr.Evaluate(reg.derived[name], expr.NewContext(record))
		if err != nil {
			return nil, fmt.Errorf("derived field %s: %w", name, err)
		}
		if ir.IsUndefined(v) {
			continue
		}
		out[name] = v
		record[name] = v
	}
	return out, nil
}
