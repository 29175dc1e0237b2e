// Package properties models a source's typed property schema and the staged
// editing of its values.
//
// Values are a sealed set of variants. Only Bool, Int, Float, Text, Enum and
// Color implement Value, so settings coming from the UI are checked against the
// engine's schema before they are ever sent.
package properties

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a property.
type Kind string

const (
	KindBool  Kind = "boolean"
	KindInt   Kind = "integer"
	KindFloat Kind = "float"
	KindText  Kind = "text"
	KindList  Kind = "enumerated-list"
	KindColor Kind = "color"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindInt, KindFloat, KindText, KindList, KindColor:
		return true
	}
	return false
}

// Value is a typed property value.
type Value interface {
	Kind() Kind
	// Raw returns the settings-bag form of the value.
	Raw() any
	propertyValue()
}

// Bool is a boolean property value.
type Bool bool

func (Bool) Kind() Kind     { return KindBool }
func (v Bool) Raw() any     { return bool(v) }
func (Bool) propertyValue() {}

// Int is an integer property value.
type Int int64

func (Int) Kind() Kind     { return KindInt }
func (v Int) Raw() any     { return float64(v) }
func (Int) propertyValue() {}

// Float is a floating point property value.
type Float float64

func (Float) Kind() Kind     { return KindFloat }
func (v Float) Raw() any     { return float64(v) }
func (Float) propertyValue() {}

// Text is a free-form string property value.
type Text string

func (Text) Kind() Kind     { return KindText }
func (v Text) Raw() any     { return string(v) }
func (Text) propertyValue() {}

// Enum is the selected option value of an enumerated list.
type Enum string

func (Enum) Kind() Kind     { return KindList }
func (v Enum) Raw() any     { return string(v) }
func (Enum) propertyValue() {}

// Color is a 32-bit 0xAARRGGBB color.
type Color uint32

func (Color) Kind() Kind     { return KindColor }
func (v Color) Raw() any     { return float64(v) }
func (Color) propertyValue() {}

// String renders the color as #AARRGGBB.
func (v Color) String() string {
	return fmt.Sprintf("#%08X", uint32(v))
}

// ParseColor accepts #RRGGBB (opaque) or #AARRGGBB.
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 6:
		h = "FF" + h
	case 8:
	default:
		return 0, fmt.Errorf("color %q: want #RRGGBB or #AARRGGBB", s)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return Color(n), nil
}

// FromRaw converts a settings-bag value to a typed Value of the given kind.
func FromRaw(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case KindInt:
		if f, ok := toFloat(raw); ok {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("integer property got fractional value %v", f)
			}
			return Int(int64(f)), nil
		}
	case KindFloat:
		if f, ok := toFloat(raw); ok {
			return Float(f), nil
		}
	case KindText:
		if s, ok := raw.(string); ok {
			return Text(s), nil
		}
	case KindList:
		switch t := raw.(type) {
		case string:
			return Enum(t), nil
		case float64:
			return Enum(strconv.FormatFloat(t, 'f', -1, 64)), nil
		}
	case KindColor:
		if s, ok := raw.(string); ok {
			return ParseColor(s)
		}
		if f, ok := toFloat(raw); ok && f >= 0 && f <= math.MaxUint32 && f == math.Trunc(f) {
			return Color(uint32(f)), nil
		}
	default:
		return nil, fmt.Errorf("unknown property kind %q", kind)
	}
	return nil, fmt.Errorf("%s property cannot hold %T value %v", kind, raw, raw)
}

func toFloat(raw any) (float64, bool) {
	switch t := raw.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// Equal compares two values by kind and raw form.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Raw() == b.Raw()
}
