package compiler

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/stage-tech/basestar-sub001/internal/aggregate"
	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/parser"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// ObjectSchema errors (E101-E109)
	ErrInvalidName         = "E101" // schema, view or field name is not an identifier
	ErrSchemaNoFields      = "E102" // at least one field required
	ErrInvalidFieldType    = "E104" // invalid type string
	ErrDuplicateName       = "E105" // duplicate schema/view/field name
	ErrReservedField       = "E106" // field shadows id, schema or version
	ErrUnknownIndexedField = "E107" // indexed field not declared
	ErrIndexedNotScalar    = "E108" // indexed field must be a scalar type
	ErrInvalidDerived      = "E109" // derived field does not parse or forms a cycle

	// ViewSpec errors (E110-E119)
	ErrUnknownSchema      = "E110" // view references an undeclared schema
	ErrInvalidWhereClause = "E111" // where expression does not parse
	ErrInvalidGroupBy     = "E112" // group expression does not parse
	ErrInvalidAggregate   = "E113" // aggregate expression invalid
	ErrViewNoAggregates   = "E114" // at least one aggregate required
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports ObjectSchema, ViewSpec and Catalog; only a Catalog checks that
// views reference declared schemas.
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *ir.ObjectSchema:
		return validateSchema(val, "schema")
	case ir.ObjectSchema:
		return validateSchema(&val, "schema")
	case *ir.ViewSpec:
		return validateView(val, "view")
	case ir.ViewSpec:
		return validateView(&val, "view")
	case *ir.Catalog:
		return validateCatalog(val)
	case ir.Catalog:
		return validateCatalog(&val)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateCatalog(c *ir.Catalog) []ValidationError {
	var errs []ValidationError

	schemaNames := make(map[string]bool)
	for i := range c.Schemas {
		schema := &c.Schemas[i]
		prefix := fmt.Sprintf("schemas[%d]", i)
		if schemaNames[schema.Name] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate schema name: %q", schema.Name),
				Code:    ErrDuplicateName,
			})
		}
		schemaNames[schema.Name] = true
		errs = append(errs, validateSchema(schema, prefix)...)
	}

	viewNames := make(map[string]bool)
	for i := range c.Views {
		view := &c.Views[i]
		prefix := fmt.Sprintf("views[%d]", i)
		if viewNames[view.Name] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate view name: %q", view.Name),
				Code:    ErrDuplicateName,
			})
		}
		viewNames[view.Name] = true

		if !schemaNames[view.Schema] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".schema",
				Message: fmt.Sprintf("view %q references unknown schema %q", view.Name, view.Schema),
				Code:    ErrUnknownSchema,
			})
		}
		errs = append(errs, validateView(view, prefix)...)
	}

	return errs
}

func validateSchema(s *ir.ObjectSchema, prefix string) []ValidationError {
	var errs []ValidationError

	// E101: name must be an identifier
	if !isIdentifier(s.Name) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".name",
			Message: fmt.Sprintf("invalid schema name %q", s.Name),
			Code:    ErrInvalidName,
		})
	}

	// E102: at least one field
	if len(s.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".fields",
			Message: "at least one field is required",
			Code:    ErrSchemaNoFields,
		})
	}

	for _, name := range s.FieldNames() {
		path := fmt.Sprintf("%s.fields.%s", prefix, name)
		errs = append(errs, validateFieldName(name, path)...)

		// E104: check for valid type
		if typ := s.Fields[name]; !ir.ValidFieldTypes[typ] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("invalid type %q for field %q", typ, name),
				Code:    ErrInvalidFieldType,
			})
		}
	}

	for i, name := range s.Indexed {
		path := fmt.Sprintf("%s.indexed[%d]", prefix, i)
		typ, ok := s.FieldType(name)
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("indexed field %q is not declared", name),
				Code:    ErrUnknownIndexedField,
			})
		case !isScalarType(typ):
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("indexed field %q has non-scalar type %s", name, typ),
				Code:    ErrIndexedNotScalar,
			})
		}
	}

	for _, name := range slices.Sorted(maps.Keys(s.Derived)) {
		path := fmt.Sprintf("%s.derived.%s", prefix, name)
		errs = append(errs, validateFieldName(name, path)...)
		if _, ok := s.Fields[name]; ok {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("derived field %q is also a declared field", name),
				Code:    ErrDuplicateName,
			})
		}
		if _, err := parser.Parse(s.Derived[name]); err != nil {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: err.Error(),
				Code:    ErrInvalidDerived,
			})
		}
	}

	for _, cycle := range AnalyzeCycles(*s) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".derived",
			Message: cycle.Error(),
			Code:    ErrInvalidDerived,
		})
	}

	return errs
}

func validateFieldName(name, path string) []ValidationError {
	var errs []ValidationError
	if !isIdentifier(name) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("invalid field name %q", name),
			Code:    ErrInvalidName,
		})
	}
	if slices.Contains(ir.ReservedFields, name) {
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("field name %q is reserved", name),
			Code:    ErrReservedField,
		})
	}
	return errs
}

func validateView(v *ir.ViewSpec, prefix string) []ValidationError {
	var errs []ValidationError

	if !isIdentifier(v.Name) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".name",
			Message: fmt.Sprintf("invalid view name %q", v.Name),
			Code:    ErrInvalidName,
		})
	}

	// E111: where clause must parse
	if v.Where != "" {
		if _, err := parser.Parse(v.Where); err != nil {
			errs = append(errs, ValidationError{
				Field:   prefix + ".where",
				Message: err.Error(),
				Code:    ErrInvalidWhereClause,
			})
		}
	}

	// E112: group expressions must parse
	for i, src := range v.GroupBy {
		if _, err := parser.Parse(src); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.group[%d]", prefix, i),
				Message: err.Error(),
				Code:    ErrInvalidGroupBy,
			})
		}
	}

	// E114: at least one aggregate
	if len(v.Aggregates) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".aggregates",
			Message: "at least one aggregate is required",
			Code:    ErrViewNoAggregates,
		})
	}

	// E113: aggregate expressions must parse and construct
	for _, name := range slices.Sorted(maps.Keys(v.Aggregates)) {
		path := fmt.Sprintf("%s.aggregates.%s", prefix, name)
		if msg := checkAggregate(v.Aggregates[name]); msg != "" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: msg,
				Code:    ErrInvalidAggregate,
			})
		}
	}

	return errs
}

func checkAggregate(src string) string {
	e, err := parser.Parse(src, parser.WithAggregates(aggregate.Names()...))
	if err != nil {
		return err.Error()
	}
	aggs, err := aggregate.Collect(e)
	if err != nil {
		return err.Error()
	}
	if len(aggs) == 0 {
		return fmt.Sprintf("expression %q contains no aggregate", src)
	}
	return ""
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func isScalarType(t string) bool {
	switch t {
	case ir.TypeString, ir.TypeInt, ir.TypeFloat, ir.TypeBool:
		return true
	default:
		return false
	}
}
