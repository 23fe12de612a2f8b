package store

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/stage-tech/basestar-sub001/internal/ir"
)

// Shared zstd coders. Both are safe for concurrent EncodeAll/DecodeAll.
var (
	bodyEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	bodyDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// encodeBody serialises object data with msgpack and compresses it.
// Undefined fields are dropped; msgpack keeps the int/float distinction
// that JSON would lose.
func encodeBody(data ir.IRObject) ([]byte, error) {
	plain := make(map[string]any, len(data))
	for k, v := range data {
		if ir.IsUndefined(v) {
			continue
		}
		plain[k] = ir.ToGo(v)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(plain); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bodyEncoder.EncodeAll(buf.Bytes(), nil), nil
}

// decodeBody reverses encodeBody.
func decodeBody(blob []byte) (ir.IRObject, error) {
	raw, err := bodyDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress body: %w", err)
	}

	var plain map[string]any
	if err := msgpack.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	v, err := ir.FromGo(plain)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		// A nil map decodes to Undefined.
		return ir.IRObject{}, nil
	}
	return obj, nil
}

// columnValue converts an indexed field to its SQL parameter. Undefined
// and values of the wrong kind are stored as NULL.
func columnValue(typ string, v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRString:
		if typ == ir.TypeString {
			return string(val)
		}
	case ir.IRInt:
		switch typ {
		case ir.TypeInt:
			return int64(val)
		case ir.TypeFloat:
			return float64(val)
		}
	case ir.IRFloat:
		if typ == ir.TypeFloat {
			return float64(val)
		}
	case ir.IRBool:
		if typ == ir.TypeBool {
			return bool(val)
		}
	}
	return nil
}

// sqlType maps a scalar field type to its SQLite column type.
func sqlType(typ string) string {
	switch typ {
	case ir.TypeInt, ir.TypeBool:
		return "INTEGER"
	case ir.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}
