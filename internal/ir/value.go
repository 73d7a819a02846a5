package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the cell values a relation may hold.
// Only Null, Int, Text, Bool, Array and Object implement it.
// There is deliberately no Float: comparisons must be exact.
type Value interface {
	irValue()
}

// Null is SQL NULL.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Int is a 64-bit integer cell.
type Int int64

func (Int) irValue() {}

// Text is a string cell.
type Text string

func (Text) irValue() {}

// Bool is a boolean cell. SQLite stores booleans as 0/1, so evaluated
// relations never contain Bool; example data may.
type Bool bool

func (Bool) irValue() {}

// Array is used for canonical encoding of rows.
type Array []Value

func (Array) irValue() {}

// Object is used for canonical encoding of records.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 orders strings by UTF-16 code units. Go string comparison
// is by UTF-8 bytes, which differs for characters outside the BMP.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// IsNull reports whether v is SQL NULL (or a nil interface).
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// TypeOf returns the column type a scalar value belongs to.
// Null has no type of its own and returns the empty ColumnType.
func TypeOf(v Value) ColumnType {
	switch v.(type) {
	case Int:
		return TypeInt
	case Text:
		return TypeText
	case Bool:
		return TypeBool
	default:
		return ""
	}
}

// Compare is a total order over scalar values used for deterministic
// sorting: Null < Bool < Int < Text, then by value within a kind.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int:
		bv := b.(Int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case Text:
		return strings.Compare(string(av), string(b.(Text)))
	}
	return 0
}

func rank(v Value) int {
	switch v.(type) {
	case Bool:
		return 1
	case Int:
		return 2
	case Text:
		return 3
	case Array:
		return 4
	case Object:
		return 5
	default:
		return 0
	}
}

// SQLLiteral renders a scalar value as a SQLite literal.
func SQLLiteral(v Value) string {
	switch val := v.(type) {
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Text:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case Bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return "NULL"
	}
}

// String renders a value for human-readable output.
func String(v Value) string {
	switch val := v.(type) {
	case Text:
		return string(val)
	case Int, Bool:
		return SQLLiteral(val)
	case nil, Null:
		return "NULL"
	default:
		b, err := MarshalValue(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// MarshalValue marshals a Value to (non-canonical) JSON.
// Use MarshalCanonical for anything that is hashed or compared.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Text:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := MarshalValue(val[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// FromAny converts a decoded Go value (from JSON, YAML or CUE) into a
// scalar Value. Floats are accepted only when integral.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not supported: %s", val)
		}
		return Int(n), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not supported: %v", val)
		}
		return Int(int64(val)), nil
	default:
		return nil, fmt.Errorf("unsupported cell type: %T", v)
	}
}
