package telemetry

import (
	"testing"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
)

func def(vt catalog.ValueType) *catalog.MetricDefinition {
	return &catalog.MetricDefinition{ID: 1, EquipmentCode: "E1", Key: "m", ValueType: vt}
}

func TestNormalizeBool(t *testing.T) {
	v, err := Normalize(def(catalog.TypeBool), nil, true)
	if err != nil {
		t.Fatalf("bool: %v", err)
	}
	if !v.Bool || v.Type != catalog.TypeBool {
		t.Errorf("v = %v", v)
	}

	// Numbers are not coerced to bool.
	if _, err := Normalize(def(catalog.TypeBool), nil, float64(1)); err == nil {
		t.Error("numeric raw for bool metric should fail")
	}
}

func TestNormalizeInt(t *testing.T) {
	// JSON decodes numbers as float64.
	v, err := Normalize(def(catalog.TypeInt), nil, float64(42))
	if err != nil {
		t.Fatalf("int: %v", err)
	}
	if v.Int != 42 {
		t.Errorf("v = %v", v)
	}

	// Fractional values never silently truncate.
	if _, err := Normalize(def(catalog.TypeInt), nil, 42.5); err == nil {
		t.Error("fractional raw for int metric should fail")
	}
	if _, err := Normalize(def(catalog.TypeInt), nil, "42"); err == nil {
		t.Error("string raw for int metric should fail")
	}
}

func TestNormalizeReal(t *testing.T) {
	v, err := Normalize(def(catalog.TypeReal), nil, 41.5)
	if err != nil {
		t.Fatalf("real: %v", err)
	}
	if v.Real != 41.5 {
		t.Errorf("v = %v", v)
	}
	if _, err := Normalize(def(catalog.TypeReal), nil, true); err == nil {
		t.Error("bool raw for real metric should fail")
	}
}

func TestNormalizeText(t *testing.T) {
	v, err := Normalize(def(catalog.TypeText), nil, "RUNNING")
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if v.Text != "RUNNING" {
		t.Errorf("v = %v", v)
	}
}

func TestNormalizeJSON(t *testing.T) {
	v, err := Normalize(def(catalog.TypeJSON), nil, map[string]any{"state": "run"})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if v.Type != catalog.TypeJSON || v.Text != `{"state":"run"}` {
		t.Errorf("v = %v", v)
	}
}

func TestNormalizeTransform(t *testing.T) {
	b := &catalog.MetricBinding{Transform: catalog.Transform{Scale: 0.1, Offset: -40}}
	v, err := Normalize(def(catalog.TypeReal), b, float64(815))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if v.Real != 41.5 {
		t.Errorf("v = %v, want 41.5", v.Real)
	}

	// A transform that lands off-integer fails for int metrics.
	bi := &catalog.MetricBinding{Transform: catalog.Transform{Scale: 0.5}}
	if _, err := Normalize(def(catalog.TypeInt), bi, float64(5)); err == nil {
		t.Error("non-integral transformed value should fail for int metric")
	}
	v, err = Normalize(def(catalog.TypeInt), bi, float64(6))
	if err != nil {
		t.Fatalf("integral transform: %v", err)
	}
	if v.Int != 3 {
		t.Errorf("v = %v, want 3", v.Int)
	}
}

func TestNormalizeBitExtraction(t *testing.T) {
	bit := 3
	b := &catalog.MetricBinding{BitIndex: &bit}

	v, err := Normalize(def(catalog.TypeBool), b, float64(0b1000))
	if err != nil {
		t.Fatalf("bit: %v", err)
	}
	if !v.Bool {
		t.Error("bit 3 of 0b1000 should be set")
	}

	v, _ = Normalize(def(catalog.TypeBool), b, float64(0b0111))
	if v.Bool {
		t.Error("bit 3 of 0b0111 should be clear")
	}

	// Bit bindings only make sense on bool metrics.
	if _, err := Normalize(def(catalog.TypeInt), b, float64(8)); err == nil {
		t.Error("bit index on int metric should fail")
	}

	bad := 64
	bb := &catalog.MetricBinding{BitIndex: &bad}
	if _, err := Normalize(def(catalog.TypeBool), bb, float64(8)); err == nil {
		t.Error("bit index 64 should fail")
	}
}
