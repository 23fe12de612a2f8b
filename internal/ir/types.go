package ir

import "slices"

// Field type names accepted in object schemas.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeArray  = "array"
	TypeObject = "object"
	TypeAny    = "any"
)

// ValidFieldTypes lists the field type names a schema may declare.
var ValidFieldTypes = map[string]bool{
	TypeString: true,
	TypeInt:    true,
	TypeFloat:  true,
	TypeBool:   true,
	TypeArray:  true,
	TypeObject: true,
	TypeAny:    true,
}

// ObjectSchema describes a stored object type.
type ObjectSchema struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fields      map[string]string `json:"fields"`            // field name -> type name
	Indexed     []string          `json:"indexed,omitempty"` // fields with a backing column
	Derived     map[string]string `json:"derived,omitempty"` // field name -> expression over the record
}

// FieldType returns the declared type of a field and whether it exists.
func (s ObjectSchema) FieldType(name string) (string, bool) {
	t, ok := s.Fields[name]
	return t, ok
}

// IsIndexed reports whether name has a backing column.
func (s ObjectSchema) IsIndexed(name string) bool {
	return slices.Contains(s.Indexed, name)
}

// FieldNames returns the declared field names in canonical order.
func (s ObjectSchema) FieldNames() []string {
	obj := make(IRObject, len(s.Fields))
	for k := range s.Fields {
		obj[k] = Undefined
	}
	return obj.SortedKeys()
}

// Accepts reports whether v may be stored in a field of type typeName.
// Undefined is accepted by every type; ints are accepted as floats.
func Accepts(typeName string, v IRValue) bool {
	k := KindOf(v)
	if k == KindUndefined {
		return true
	}
	switch typeName {
	case TypeString:
		return k == KindText
	case TypeInt:
		return k == KindInteger
	case TypeFloat:
		return k.IsNumeric()
	case TypeBool:
		return k == KindBoolean
	case TypeArray:
		return k == KindSequence
	case TypeObject:
		return k == KindMapping
	case TypeAny:
		return true
	default:
		return false
	}
}

// Object is a stored object: its identity, schema, optimistic version
// and field data.
type Object struct {
	ID      string   `json:"id"`
	Schema  string   `json:"schema"`
	Version int64    `json:"version"`
	Data    IRObject `json:"data"`
}

// Record returns the object as a single mapping with the reserved id,
// schema and version fields set. This is the row shape expressions see.
func (o Object) Record() IRObject {
	rec := make(IRObject, len(o.Data)+3)
	for k, v := range o.Data {
		rec[k] = v
	}
	rec["id"] = IRString(o.ID)
	rec["schema"] = IRString(o.Schema)
	rec["version"] = IRInt(o.Version)
	return rec
}

// ReservedFields are injected by Record and may not be declared by a schema.
var ReservedFields = []string{"id", "schema", "version"}

// ViewSpec declares a materialised view over one schema. Expressions are
// kept in textual form and parsed by the view package.
type ViewSpec struct {
	Name       string            `json:"name"`
	Schema     string            `json:"schema"`
	Where      string            `json:"where,omitempty"`
	GroupBy    []string          `json:"group_by,omitempty"`
	Aggregates map[string]string `json:"aggregates"` // output column -> aggregate expression
}

// Catalog is the compiled set of schemas and views loaded together.
type Catalog struct {
	Schemas []ObjectSchema `json:"schemas"`
	Views   []ViewSpec     `json:"views,omitempty"`
}

// Schema returns the schema with the given name.
func (c *Catalog) Schema(name string) (ObjectSchema, bool) {
	for _, s := range c.Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return ObjectSchema{}, false
}
