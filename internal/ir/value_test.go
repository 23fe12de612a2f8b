package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "integer", KindInteger.String())
	assert.Equal(t, "undefined", KindOf(nil).String())
	assert.Equal(t, "mapping", IRObject{}.Kind().String())
	assert.True(t, KindFloat.IsNumeric())
	assert.False(t, KindText.IsNumeric())
}

func TestUnmarshalIRValueNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  IRValue
	}{
		{"1", IRInt(1)},
		{"-7", IRInt(-7)},
		{"1.0", IRFloat(1)},
		{"2.5", IRFloat(2.5)},
		{"1e3", IRFloat(1000)},
		{"null", Undefined},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := UnmarshalIRValue([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalIRValueNested(t *testing.T) {
	got, err := UnmarshalIRValue([]byte(`{"a":[1,"x",true],"b":{"c":null}}`))
	require.NoError(t, err)

	want := IRObject{
		"a": IRArray{IRInt(1), IRString("x"), IRBool(true)},
		"b": IRObject{"c": Undefined},
	}
	assert.Equal(t, want, got)
}

func TestIRObjectJSONRoundTrip(t *testing.T) {
	obj := IRObject{
		"name":  IRString("cart"),
		"total": IRFloat(3),
		"items": IRArray{IRInt(1), IRInt(2)},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[1,2],"name":"cart","total":3.0}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Identical(obj, back))

	var arr IRArray
	assert.Error(t, json.Unmarshal(data, &arr))

	var holder struct {
		Data IRObject `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"data":null}`), &holder))
	assert.Nil(t, holder.Data)
}

func TestIRObjectGet(t *testing.T) {
	obj := IRObject{"a": IRInt(1), "n": nil}
	assert.Equal(t, IRInt(1), obj.Get("a"))
	assert.Equal(t, Undefined, obj.Get("missing"))
	assert.Equal(t, Undefined, obj.Get("n"))
}

func TestFromGoAndToGo(t *testing.T) {
	in := map[string]any{
		"i":   int64(3),
		"u":   uint8(4),
		"f":   1.5,
		"s":   "x",
		"arr": []any{true, nil},
		"m":   map[any]any{"k": "v"},
	}

	v, err := FromGo(in)
	require.NoError(t, err)
	obj := v.(IRObject)
	assert.Equal(t, IRInt(3), obj["i"])
	assert.Equal(t, IRInt(4), obj["u"])
	assert.Equal(t, IRFloat(1.5), obj["f"])
	assert.Equal(t, IRArray{IRBool(true), Undefined}, obj["arr"])
	assert.Equal(t, IRObject{"k": IRString("v")}, obj["m"])

	back := ToGo(obj).(map[string]any)
	assert.Equal(t, int64(3), back["i"])
	assert.Equal(t, []any{true, nil}, back["arr"])
}

func TestFromGoRejects(t *testing.T) {
	_, err := FromGo(struct{}{})
	require.Error(t, err)

	_, err = FromGo(map[any]any{1: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keys must be strings")
}

func TestObjectRecord(t *testing.T) {
	o := Object{ID: "id-1", Schema: "Order", Version: 2, Data: IRObject{"total": IRInt(5)}}
	rec := o.Record()
	assert.Equal(t, IRString("id-1"), rec["id"])
	assert.Equal(t, IRString("Order"), rec["schema"])
	assert.Equal(t, IRInt(2), rec["version"])
	assert.Equal(t, IRInt(5), rec["total"])
	assert.NotContains(t, o.Data, "id")
}

func TestObjectSchemaHelpers(t *testing.T) {
	s := ObjectSchema{
		Name:    "Order",
		Fields:  map[string]string{"total": TypeFloat, "region": TypeString},
		Indexed: []string{"region"},
	}
	assert.True(t, s.IsIndexed("region"))
	assert.False(t, s.IsIndexed("total"))
	assert.Equal(t, []string{"region", "total"}, s.FieldNames())

	typ, ok := s.FieldType("total")
	assert.True(t, ok)
	assert.Equal(t, TypeFloat, typ)

	assert.True(t, Accepts(TypeFloat, IRInt(1)))
	assert.False(t, Accepts(TypeInt, IRFloat(1)))
	assert.True(t, Accepts(TypeString, Undefined))
	assert.False(t, Accepts("decimal", IRInt(1)))
}
