package manifest

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindBool
)

// Value is a metadata value. Manifests only ever carry strings and booleans.
type Value struct {
	kind Kind
	str  string
	b    bool
}

// StringValue returns a string variant.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BoolValue returns a boolean variant.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Bool returns the boolean payload and whether v is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) String() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.b)
	}
	return v.str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindBool {
		return json.Marshal(v.b)
	}
	return json.Marshal(v.str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = BoolValue(x)
	case string:
		*v = StringValue(x)
	default:
		return errors.Errorf("metadata value must be a string or bool, got %s", string(data))
	}
	return nil
}

// MarshalYAML renders the native scalar.
func (v Value) MarshalYAML() (any, error) {
	if v.kind == KindBool {
		return v.b, nil
	}
	return v.str, nil
}

// Metadata is the one-level key/value block nested under `metadata:`.
type Metadata map[string]Value

// IsInternal reports whether the manifest flags itself as internal.
func (m Metadata) IsInternal() bool {
	v, ok := m["internal"]
	if !ok {
		return false
	}
	b, isBool := v.Bool()
	return isBool && b
}
