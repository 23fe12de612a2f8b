package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/querysql"
)

// Create stores a new object at version 1 and returns it with its
// derived fields.
func (s *Store) Create(ctx context.Context, schema string, data ir.IRObject) (ir.Object, error) {
	reg, err := s.lookup(schema)
	if err != nil {
		return ir.Object{}, fmt.Errorf("create: %w", err)
	}
	id, err := s.newID()
	if err != nil {
		return ir.Object{}, fmt.Errorf("create: generate id: %w", err)
	}
	return s.insert(ctx, reg, id, data)
}

// CreateWithID stores a new object under a caller-chosen id. An existing
// id is a version conflict.
func (s *Store) CreateWithID(ctx context.Context, schema, id string, data ir.IRObject) (ir.Object, error) {
	reg, err := s.lookup(schema)
	if err != nil {
		return ir.Object{}, fmt.Errorf("create: %w", err)
	}
	if id == "" {
		return ir.Object{}, fmt.Errorf("create: %w: empty id", ErrInvalidObject)
	}
	return s.insert(ctx, reg, id, data)
}

func (s *Store) insert(ctx context.Context, reg *registered, id string, data ir.IRObject) (ir.Object, error) {
	prepared, err := reg.prepare(id, 1, data)
	if err != nil {
		return ir.Object{}, fmt.Errorf("create %s: %w", reg.schema.Name, err)
	}
	obj := ir.Object{ID: id, Schema: reg.schema.Name, Version: 1, Data: prepared}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Object{}, fmt.Errorf("create %s: begin tx: %w", reg.schema.Name, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM "+querysql.QuoteIdent(reg.table)+` WHERE "id" = ?`, id).Scan(&exists)
	switch {
	case err == nil:
		return ir.Object{}, fmt.Errorf("create %s: %w: id %s already exists", reg.schema.Name, ErrVersionConflict, id)
	case !errors.Is(err, sql.ErrNoRows):
		return ir.Object{}, fmt.Errorf("create %s: %w", reg.schema.Name, err)
	}

	query, args, err := insertStatement(reg, obj)
	if err != nil {
		return ir.Object{}, fmt.Errorf("create %s: %w", reg.schema.Name, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return ir.Object{}, fmt.Errorf("create %s: %w", reg.schema.Name, err)
	}

	seq := s.seq.reserve()
	if err := logChange(ctx, tx, seq, OpCreate, reg.schema.Name, id, obj.Version); err != nil {
		return ir.Object{}, fmt.Errorf("create %s: %w", reg.schema.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return ir.Object{}, fmt.Errorf("create %s: commit: %w", reg.schema.Name, err)
	}
	s.seq.commit(seq)

	after := obj
	s.notify(Change{Seq: seq, Op: OpCreate, Schema: reg.schema.Name, After: &after})
	return obj, nil
}

// Update replaces the data of an object. version must equal the stored
// version, otherwise ErrVersionConflict is returned and nothing changes.
// The stored version is incremented.
func (s *Store) Update(ctx context.Context, schema, id string, version int64, data ir.IRObject) (ir.Object, error) {
	reg, err := s.lookup(schema)
	if err != nil {
		return ir.Object{}, fmt.Errorf("update: %w", err)
	}
	prepared, err := reg.prepare(id, version+1, data)
	if err != nil {
		return ir.Object{}, fmt.Errorf("update %s: %w", schema, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Object{}, fmt.Errorf("update %s: begin tx: %w", schema, err)
	}
	defer tx.Rollback()

	before, err := s.getTx(ctx, tx, reg, id)
	if err != nil {
		return ir.Object{}, fmt.Errorf("update %s: %w", schema, err)
	}
	if before.Version != version {
		return ir.Object{}, fmt.Errorf("update %s %s: %w: have %d, got %d", schema, id, ErrVersionConflict, before.Version, version)
	}

	after := ir.Object{ID: id, Schema: schema, Version: version + 1, Data: prepared}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+querysql.QuoteIdent(reg.table)+` WHERE "id" = ?`, id); err != nil {
		return ir.Object{}, fmt.Errorf("update %s: %w", schema, err)
	}
	query, args, err := insertStatement(reg, after)
	if err != nil {
		return ir.Object{}, fmt.Errorf("update %s: %w", schema, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return ir.Object{}, fmt.Errorf("update %s: %w", schema, err)
	}

	seq := s.seq.reserve()
	if err := logChange(ctx, tx, seq, OpUpdate, schema, id, after.Version); err != nil {
		return ir.Object{}, fmt.Errorf("update %s: %w", schema, err)
	}
	if err := tx.Commit(); err != nil {
		return ir.Object{}, fmt.Errorf("update %s: commit: %w", schema, err)
	}
	s.seq.commit(seq)

	result := after
	s.notify(Change{Seq: seq, Op: OpUpdate, Schema: schema, Before: &before, After: &after})
	return result, nil
}

// Delete removes an object. version must equal the stored version.
func (s *Store) Delete(ctx context.Context, schema, id string, version int64) error {
	reg, err := s.lookup(schema)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s: begin tx: %w", schema, err)
	}
	defer tx.Rollback()

	before, err := s.getTx(ctx, tx, reg, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", schema, err)
	}
	if before.Version != version {
		return fmt.Errorf("delete %s %s: %w: have %d, got %d", schema, id, ErrVersionConflict, before.Version, version)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+querysql.QuoteIdent(reg.table)+` WHERE "id" = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", schema, err)
	}

	seq := s.seq.reserve()
	if err := logChange(ctx, tx, seq, OpDelete, schema, id, version); err != nil {
		return fmt.Errorf("delete %s: %w", schema, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete %s: commit: %w", schema, err)
	}
	s.seq.commit(seq)

	s.notify(Change{Seq: seq, Op: OpDelete, Schema: schema, Before: &before})
	return nil
}

// insertStatement builds the INSERT for an object row: reserved columns,
// indexed columns and the encoded body.
func insertStatement(reg *registered, obj ir.Object) (string, []any, error) {
	body, err := encodeBody(obj.Data)
	if err != nil {
		return "", nil, err
	}

	cols := []string{`"id"`, `"version"`}
	args := []any{obj.ID, obj.Version}
	for _, name := range reg.schema.Indexed {
		typ, _ := reg.schema.FieldType(name)
		cols = append(cols, querysql.QuoteIdent(name))
		args = append(args, columnValue(typ, obj.Data.Get(name)))
	}
	cols = append(cols, `"body"`)
	args = append(args, body)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.QuoteIdent(reg.table), strings.Join(cols, ", "), placeholders)
	return query, args, nil
}
