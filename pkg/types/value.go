// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindList
	KindMap
)

// Field is one key of a map-shaped Value. Maps are kept as ordered field
// lists rather than Go maps so that records preserve the key order the
// source sent them in.
type Field struct {
	Key   string
	Value Value
}

// Value is a tagged union over the shapes a loosely-typed source can send
// for any field: null, a scalar, a list, or a nested map. Sources that send
// dict-or-list-or-scalar interchangeably per field are handled with explicit
// per-shape branching instead of implicit coercion.
type Value struct {
	kind   Kind
	scalar any // string, bool, int64 or float64
	list   []Value
	fields []Field
}

// Null is the shared null Value.
var Null = Value{kind: KindNull}

// Scalar wraps a scalar into a Value. A nil argument yields Null.
func Scalar(v any) Value {
	if v == nil {
		return Null
	}
	return Value{kind: KindScalar, scalar: v}
}

// List wraps a slice of Values.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Map builds a map-shaped Value from ordered fields.
func Map(fields ...Field) Value {
	return Value{kind: KindMap, fields: fields}
}

// Kind returns the shape tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the null marker.
func (v Value) IsNull() bool { return v.kind == KindNull }

// ScalarValue returns the underlying scalar, or nil for non-scalars.
func (v Value) ScalarValue() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// Items returns the list elements, or nil for non-lists.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Fields returns the ordered map fields, or nil for non-maps.
func (v Value) Fields() []Field {
	if v.kind != KindMap {
		return nil
	}
	return v.fields
}

// Get looks up a key in a map-shaped value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Null, false
}

// GetPath walks nested map keys tolerantly: any missing key or non-map hop
// along the way yields Null instead of an error.
func (v Value) GetPath(keys ...string) Value {
	cur := v
	for _, k := range keys {
		next, ok := cur.Get(k)
		if !ok {
			return Null
		}
		cur = next
	}
	return cur
}

// AsString returns the scalar rendered as a string, or "" for null and
// non-scalar shapes.
func (v Value) AsString() string {
	if v.kind != KindScalar {
		return ""
	}
	switch s := v.scalar.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// AsList normalizes a value into a slice: null becomes an empty slice and a
// non-list becomes a single-element slice. Mirrors the tolerant handling
// sources need when a field is sometimes a list and sometimes a lone object.
func (v Value) AsList() []Value {
	switch v.kind {
	case KindNull:
		return nil
	case KindList:
		return v.list
	default:
		return []Value{v}
	}
}

// ParseValue decodes a JSON document into a Value, preserving object key
// order. Numbers decode to int64 when integral, float64 otherwise.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Null, err
	}
	// Reject trailing garbage after the document.
	if _, err := dec.Token(); err != io.EOF {
		return Null, fmt.Errorf("trailing data after JSON document")
	}
	return v, nil
}

// DecodeValue decodes the next JSON value from dec. The decoder must have
// UseNumber set for faithful numeric handling.
func DecodeValue(dec *json.Decoder) (Value, error) {
	return decodeValue(dec)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Null, err
				}
				fields = append(fields, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Null, err
			}
			return Value{kind: KindMap, fields: fields}, nil
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Null, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Null, err
			}
			return Value{kind: KindList, list: items}, nil
		default:
			return Null, fmt.Errorf("unexpected delimiter %q", t)
		}
	case nil:
		return Null, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Scalar(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Null, fmt.Errorf("unparsable number %q", t.String())
		}
		return Scalar(f), nil
	case string:
		return Scalar(t), nil
	case bool:
		return Scalar(t), nil
	default:
		return Null, fmt.Errorf("unexpected token %v", tok)
	}
}

// MarshalJSON renders the value back to JSON with field order intact.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindScalar:
		b, err := json.Marshal(v.scalar)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			if err := writeJSON(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
