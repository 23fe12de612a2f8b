package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Kind is the runtime tag of an IRValue. Operators dispatch on pairs of
// kinds rather than on Go types.
type Kind int

const (
	KindUndefined Kind = iota
	KindInteger
	KindFloat
	KindText
	KindSequence
	KindMapping
	KindBoolean
)

// String returns the lower-case kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsNumeric reports whether the kind is Integer or Float.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat
}

// IRValue is a sealed interface representing the value kinds.
// Only IRUndefined, IRInt, IRFloat, IRString, IRBool, IRArray and IRObject
// implement it.
type IRValue interface {
	Kind() Kind
	irValue() // Sealed - only these types implement it
}

// IRUndefined marks an absent value: an unresolved variable, a missing
// field, or the result of an operator applied to an absent operand.
type IRUndefined struct{}

func (IRUndefined) irValue() {}

// Kind implements IRValue.
func (IRUndefined) Kind() Kind { return KindUndefined }

// MarshalJSON encodes IRUndefined as JSON null.
func (IRUndefined) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Undefined is the shared IRUndefined value.
var Undefined IRValue = IRUndefined{}

// IRString represents a text value.
type IRString string

func (IRString) irValue() {}

// Kind implements IRValue.
func (IRString) Kind() Kind { return KindText }

// IRInt represents an exact integer value.
type IRInt int64

func (IRInt) irValue() {}

// Kind implements IRValue.
func (IRInt) Kind() Kind { return KindInteger }

// IRFloat represents a floating-point value. Integers are only promoted to
// IRFloat when the other operand of an arithmetic operator is an IRFloat.
type IRFloat float64

func (IRFloat) irValue() {}

// Kind implements IRValue.
func (IRFloat) Kind() Kind { return KindFloat }

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// Kind implements IRValue.
func (IRBool) Kind() Kind { return KindBoolean }

// IRArray represents an ordered sequence of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// Kind implements IRValue.
func (IRArray) Kind() Kind { return KindSequence }

// IRObject represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// Kind implements IRValue.
func (IRObject) Kind() Kind { return KindMapping }

// KindOf returns the kind of v, treating a nil interface as Undefined.
func KindOf(v IRValue) Kind {
	if v == nil {
		return KindUndefined
	}
	return v.Kind()
}

// IsUndefined reports whether v is nil or IRUndefined.
func IsUndefined(v IRValue) bool {
	return KindOf(v) == KindUndefined
}

// Get returns the value stored under key, or Undefined.
func (obj IRObject) Get(key string) IRValue {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return Undefined
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order which differs for some inputs.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// UnmarshalJSON decodes a JSON object. Integral numbers become IRInt and
// null becomes Undefined, as in UnmarshalIRValue. A top-level null
// leaves obj unchanged.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected a JSON object, got %s", KindOf(v))
	}
	*obj = o
	return nil
}

// UnmarshalJSON decodes a JSON array.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected a JSON array, got %s", KindOf(v))
	}
	*arr = a
	return nil
}

// numberValue converts a JSON number to IRInt when it is integral and in
// range, IRFloat otherwise.
func numberValue(n json.Number) (IRValue, error) {
	if i, err := n.Int64(); err == nil {
		return IRInt(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	return IRFloat(f), nil
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// MarshalJSON encodes the object as canonical JSON, so encoding/json
// output of records is byte-stable.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON encodes the array as canonical JSON.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

// formatFloat renders a float so that it never reads back as an integer.
func formatFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v cannot be encoded", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// UnmarshalIRValue deserializes JSON into an IRValue.
// This is the primary API for external JSON parsing.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return FromGo(raw)
}

// FromGo converts a decoded Go value (from encoding/json, yaml.v3 or
// msgpack) into an IRValue. nil becomes IRUndefined.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return Undefined, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		return numberValue(val)
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned integer %d overflows int64", val)
		}
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	case map[any]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v: keys must be strings", k)
			}
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", key, err)
			}
			obj[key] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts an IRValue into plain Go values (nil, bool, int64,
// float64, string, []any, map[string]any) for encoders that do not know
// about IR types.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case nil, IRUndefined:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}
