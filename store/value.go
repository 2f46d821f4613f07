package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
)

// Value is a typed metric value as persisted by the store. Exactly one of the
// payload fields is meaningful, selected by Type. Text carries both text and
// raw JSON payloads.
type Value struct {
	Type catalog.ValueType
	Bool bool
	Int  int64
	Real float64
	Text string
}

// BoolValue returns a bool-typed Value.
func BoolValue(b bool) Value { return Value{Type: catalog.TypeBool, Bool: b} }

// IntValue returns an int-typed Value.
func IntValue(i int64) Value { return Value{Type: catalog.TypeInt, Int: i} }

// RealValue returns a real-typed Value.
func RealValue(f float64) Value { return Value{Type: catalog.TypeReal, Real: f} }

// TextValue returns a text-typed Value.
func TextValue(s string) Value { return Value{Type: catalog.TypeText, Text: s} }

// JSONValue returns a json-typed Value holding raw JSON text.
func JSONValue(raw string) Value { return Value{Type: catalog.TypeJSON, Text: raw} }

// Any returns the native Go representation of the value.
func (v Value) Any() any {
	switch v.Type {
	case catalog.TypeBool:
		return v.Bool
	case catalog.TypeInt:
		return v.Int
	case catalog.TypeReal:
		return v.Real
	case catalog.TypeText:
		return v.Text
	case catalog.TypeJSON:
		return json.RawMessage(v.Text)
	}
	return nil
}

// Equal reports whether two values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case catalog.TypeBool:
		return v.Bool == o.Bool
	case catalog.TypeInt:
		return v.Int == o.Int
	case catalog.TypeReal:
		return v.Real == o.Real
	default:
		return v.Text == o.Text
	}
}

// MarshalJSON encodes the native value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// String formats the value for logs.
func (v Value) String() string {
	return fmt.Sprintf("%v(%s)", v.Any(), v.Type)
}

// columns expands the value into nullable write columns (vbool, vint, vreal, vtext).
func (v Value) columns() (vbool, vint, vreal, vtext any) {
	switch v.Type {
	case catalog.TypeBool:
		b := int64(0)
		if v.Bool {
			b = 1
		}
		return b, nil, nil, nil
	case catalog.TypeInt:
		return nil, v.Int, nil, nil
	case catalog.TypeReal:
		return nil, nil, v.Real, nil
	default:
		return nil, nil, nil, v.Text
	}
}

// scanValue reassembles a Value from its nullable columns.
func scanValue(typ string, vbool sql.NullInt64, vint sql.NullInt64, vreal sql.NullFloat64, vtext sql.NullString) Value {
	vt := catalog.ValueType(typ)
	switch vt {
	case catalog.TypeBool:
		return Value{Type: vt, Bool: vbool.Int64 != 0}
	case catalog.TypeInt:
		return Value{Type: vt, Int: vint.Int64}
	case catalog.TypeReal:
		return Value{Type: vt, Real: vreal.Float64}
	default:
		return Value{Type: vt, Text: vtext.String}
	}
}

// Millis converts a time to the epoch-millisecond representation used in
// every timestamp column.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts a stored timestamp back to UTC time.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
