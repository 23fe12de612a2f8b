// Package compiler turns CUE schema and view declarations into the ir
// catalog and validates the result.
//
// Declarations look like:
//
//	schema: Order: {
//		description: "Customer orders"
//		fields: {
//			status: string
//			total:  float
//			lines:  [...]
//		}
//		indexed: ["status", "total"]
//		derived: large: "total > 100"
//	}
//
//	view: OrderStats: {
//		schema: "Order"
//		where:  "status != \"void\""
//		group: ["status"]
//		aggregates: revenue: "sum(total)"
//	}
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// CompileCatalog compiles every declaration under the top-level schema
// and view structs of v. Either may be absent.
func CompileCatalog(v cue.Value) (*ir.Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	catalog := &ir.Catalog{}

	schemas := v.LookupPath(cue.ParsePath("schema"))
	if schemas.Exists() {
		iter, err := schemas.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			schema, err := CompileSchema(iter.Value())
			if err != nil {
				return nil, err
			}
			catalog.Schemas = append(catalog.Schemas, *schema)
		}
	}

	views := v.LookupPath(cue.ParsePath("view"))
	if views.Exists() {
		iter, err := views.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			view, err := CompileView(iter.Value())
			if err != nil {
				return nil, err
			}
			catalog.Views = append(catalog.Views, *view)
		}
	}

	return catalog, nil
}

// CompileSchema parses one schema struct. The schema name is the struct
// label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`schema: Order: { fields: { status: string } }`)
//	schema, err := CompileSchema(v.LookupPath(cue.ParsePath("schema.Order")))
func CompileSchema(v cue.Value) (*ir.ObjectSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &ir.ObjectSchema{
		Name:   label(v),
		Fields: make(map[string]string),
	}

	desc, err := optionalString(v, "description")
	if err != nil {
		return nil, err
	}
	schema.Description = desc

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		typeName, err := extractTypeName(iter.Value())
		if err != nil {
			return nil, err
		}
		schema.Fields[iter.Label()] = typeName
	}

	schema.Indexed, err = stringList(v, "indexed")
	if err != nil {
		return nil, err
	}

	schema.Derived, err = stringMap(v, "derived")
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// CompileView parses one view struct. Expressions stay textual; they are
// checked by Validate and parsed when the view is built.
func CompileView(v cue.Value) (*ir.ViewSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	view := &ir.ViewSpec{Name: label(v)}

	schemaVal := v.LookupPath(cue.ParsePath("schema"))
	if !schemaVal.Exists() {
		return nil, &CompileError{
			Field:   "schema",
			Message: "view schema is required",
			Pos:     v.Pos(),
		}
	}
	schema, err := schemaVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	view.Schema = schema

	if view.Where, err = optionalString(v, "where"); err != nil {
		return nil, err
	}
	if view.GroupBy, err = stringList(v, "group"); err != nil {
		return nil, err
	}
	if view.Aggregates, err = stringMap(v, "aggregates"); err != nil {
		return nil, err
	}
	if len(view.Aggregates) == 0 {
		return nil, &CompileError{
			Field:   "aggregates",
			Message: "at least one aggregate is required",
			Pos:     v.Pos(),
		}
	}

	return view, nil
}

func label(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1].String()
}

func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(v cue.Value, path string) (map[string]string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[iter.Label()] = s
	}
	return out, nil
}

// extractTypeName converts a CUE kind to a schema field type.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInt, nil
	case cue.FloatKind, cue.NumberKind:
		return ir.TypeFloat, nil
	case cue.BoolKind:
		return ir.TypeBool, nil
	case cue.ListKind:
		return ir.TypeArray, nil
	case cue.StructKind:
		return ir.TypeObject, nil
	case cue.TopKind:
		return ir.TypeAny, nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
