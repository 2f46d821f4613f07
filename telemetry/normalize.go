package telemetry

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// Normalize converts a raw sample (as decoded from a source gateway's JSON)
// into the typed value declared by the metric definition. Raw values are
// never coerced across bool/int/real at the declared-type boundary: a raw
// payload that cannot faithfully represent the declared type is an error and
// the sample is dropped by the caller.
func Normalize(def *catalog.MetricDefinition, b *catalog.MetricBinding, raw any) (store.Value, error) {
	if b != nil && b.BitIndex != nil {
		return normalizeBit(def, *b.BitIndex, raw)
	}

	switch def.ValueType {
	case catalog.TypeBool:
		v, ok := raw.(bool)
		if !ok {
			return store.Value{}, typeErr(def, "bool", raw)
		}
		return store.BoolValue(v), nil

	case catalog.TypeInt:
		f, ok := toFloat(raw)
		if !ok {
			return store.Value{}, typeErr(def, "int", raw)
		}
		if b != nil && !b.Transform.Identity() {
			f = b.Transform.Apply(f)
		}
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return store.Value{}, fmt.Errorf("metric %s/%s: value %v is not an integer", def.EquipmentCode, def.Key, f)
		}
		return store.IntValue(int64(f)), nil

	case catalog.TypeReal:
		f, ok := toFloat(raw)
		if !ok {
			return store.Value{}, typeErr(def, "real", raw)
		}
		if b != nil && !b.Transform.Identity() {
			f = b.Transform.Apply(f)
		}
		return store.RealValue(f), nil

	case catalog.TypeText:
		s, ok := raw.(string)
		if !ok {
			return store.Value{}, typeErr(def, "text", raw)
		}
		return store.TextValue(s), nil

	case catalog.TypeJSON:
		data, err := json.Marshal(raw)
		if err != nil {
			return store.Value{}, fmt.Errorf("metric %s/%s: re-encode json: %w", def.EquipmentCode, def.Key, err)
		}
		return store.JSONValue(string(data)), nil
	}
	return store.Value{}, fmt.Errorf("metric %s/%s: unknown value type %q", def.EquipmentCode, def.Key, def.ValueType)
}

// normalizeBit extracts one bit from an integer status word. Bit-indexed
// bindings are only valid for bool metrics.
func normalizeBit(def *catalog.MetricDefinition, bit int, raw any) (store.Value, error) {
	if def.ValueType != catalog.TypeBool {
		return store.Value{}, fmt.Errorf("metric %s/%s: bit index on non-bool metric (%s)", def.EquipmentCode, def.Key, def.ValueType)
	}
	if bit < 0 || bit > 63 {
		return store.Value{}, fmt.Errorf("metric %s/%s: bit index %d out of range", def.EquipmentCode, def.Key, bit)
	}
	f, ok := toFloat(raw)
	if !ok || f != math.Trunc(f) {
		return store.Value{}, typeErr(def, "integer status word", raw)
	}
	word := int64(f)
	return store.BoolValue(word&(1<<uint(bit)) != 0), nil
}

func typeErr(def *catalog.MetricDefinition, want string, raw any) error {
	return fmt.Errorf("metric %s/%s: expected %s, got %T (%v)", def.EquipmentCode, def.Key, want, raw, raw)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
