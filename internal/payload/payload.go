// Package payload wraps loosely-structured webhook bodies in a tagged JSON value
// and provides dotted-path lookups that fall back to defaults instead of failing.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// codec keeps numbers as json.Number so phone numbers and ids survive untouched.
var codec = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Kind identifies the JSON type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is an immutable JSON tree. The zero Value is JSON null.
type Value struct {
	v any
}

// Parse decodes a JSON document. Any JSON value is accepted at the top level.
func Parse(data []byte) (Value, error) {
	var v any
	if err := codec.Unmarshal(data, &v); err != nil {
		return Value{}, fmt.Errorf("decode payload: %w", err)
	}
	return Value{v: v}, nil
}

// From wraps an already decoded tree (maps, slices, strings, numbers, bools, nil).
func From(v any) Value {
	return Value{v: v}
}

// Interface returns the underlying decoded tree.
func (v Value) Interface() any {
	return v.v
}

func (v Value) Kind() Kind {
	switch v.v.(type) {
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	case string:
		return KindString
	case json.Number, float64, float32, int, int32, int64:
		return KindNumber
	case bool:
		return KindBool
	default:
		return KindNull
	}
}

func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Lookup walks a dot-separated path key by key. Array elements are addressed by
// their decimal index. It reports false when any step is missing, when an
// intermediate value is not a container, or when the terminal value is null.
func (v Value) Lookup(path string) (Value, bool) {
	cur := v.v
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			switch node := cur.(type) {
			case map[string]any:
				next, ok := node[key]
				if !ok {
					return Value{}, false
				}
				cur = next
			case []any:
				idx, err := strconv.Atoi(key)
				if err != nil || idx < 0 || idx >= len(node) {
					return Value{}, false
				}
				cur = node[idx]
			default:
				return Value{}, false
			}
		}
	}
	if cur == nil {
		return Value{}, false
	}
	return Value{v: cur}, true
}

// Get returns the value at path or def when it is absent.
func (v Value) Get(path string, def Value) Value {
	if found, ok := v.Lookup(path); ok {
		return found
	}
	return def
}

// String returns the scalar at path rendered as text. Objects and arrays count
// as absent. Empty strings and zero numbers are returned as-is.
func (v Value) String(path, def string) string {
	found, ok := v.Lookup(path)
	if !ok {
		return def
	}
	if s, ok := found.scalarText(); ok {
		return s
	}
	return def
}

// FirstString returns the first present scalar among paths, or def.
func (v Value) FirstString(def string, paths ...string) string {
	for _, p := range paths {
		found, ok := v.Lookup(p)
		if !ok {
			continue
		}
		if s, ok := found.scalarText(); ok {
			return s
		}
	}
	return def
}

func (v Value) scalarText() (string, bool) {
	switch t := v.v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

func (v Value) MarshalJSON() ([]byte, error) {
	return codec.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalBSONValue stores the tree as a native BSON value so stored payloads
// stay queryable. json.Number becomes int64 when integral, double otherwise.
// The null Value is stored as BSON null.
func (v Value) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if v.v == nil {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(toBSON(v.v))
}

// UnmarshalBSONValue decodes a stored BSON value back into a JSON tree by way
// of relaxed extended JSON.
func (v *Value) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*v = Value{}
		return nil
	}
	wrapped := bson.D{{Key: "v", Value: bson.RawValue{Type: t, Value: data}}}
	ext, err := bson.MarshalExtJSON(wrapped, false, false)
	if err != nil {
		return fmt.Errorf("convert bson value: %w", err)
	}
	var holder struct {
		V Value `json:"v"`
	}
	if err := codec.Unmarshal(ext, &holder); err != nil {
		return fmt.Errorf("decode bson value: %w", err)
	}
	*v = holder.V
	return nil
}

func toBSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		doc := make(bson.M, len(t))
		for k, child := range t {
			doc[k] = toBSON(child)
		}
		return doc
	case []any:
		arr := make(bson.A, len(t))
		for i, child := range t {
			arr[i] = toBSON(child)
		}
		return arr
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return t
	}
}
