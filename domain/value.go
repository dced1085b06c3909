package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Extensions is the open map of runtime-added fields. Rules may write any
// key; values are restricted to the small tagged union below so the rest of
// the model stays statically typed.
type Extensions map[string]Value

// Kind discriminates the extension value union.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a tagged scalar: string, number, bool or null.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
}

// StringValue returns a string-kinded Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue returns a number-kinded Value.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// BoolValue returns a bool-kinded Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NullValue returns the null Value.
func NullValue() Value { return Value{Kind: KindNull} }

// ValueFrom coerces an arbitrary evaluation result into a Value. Numbers and
// numeric strings become numbers, bools stay bools, nil stays null, and
// everything else is stringified.
func ValueFrom(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(x)
	case float64:
		return NumberValue(x)
	case float32:
		return NumberValue(float64(x))
	case int:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case uint64:
		return NumberValue(float64(x))
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return NumberValue(f)
		}
		return StringValue(x)
	default:
		return StringValue(fmt.Sprint(x))
	}
}

// Interface returns the native Go representation of the value.
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// String renders the value for logs and string-typed targets.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// MarshalJSON writes the value as its natural JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads any JSON scalar into the union. Non-scalar input is an
// error: extension values are scalars by construction.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = NullValue()
	case bool:
		*v = BoolValue(x)
	case float64:
		*v = NumberValue(x)
	case string:
		*v = StringValue(x)
	default:
		return fmt.Errorf("extension value must be a scalar, got %T", raw)
	}
	return nil
}
