package catalog

// ValueType is the declared storage type of a metric.
type ValueType string

const (
	TypeBool ValueType = "bool"
	TypeInt  ValueType = "int"
	TypeReal ValueType = "real"
	TypeText ValueType = "text"
	TypeJSON ValueType = "json"
)

// Valid reports whether vt is a known value type.
func (vt ValueType) Valid() bool {
	switch vt {
	case TypeBool, TypeInt, TypeReal, TypeText, TypeJSON:
		return true
	}
	return false
}

// Marker classifies where a fault originates relative to the equipment.
type Marker string

const (
	MarkerInternal   Marker = "internal"
	MarkerUpstream   Marker = "upstream"
	MarkerDownstream Marker = "downstream"
)

// MetricDefinition identifies one metric on one piece of equipment.
// Immutable once referenced by history.
type MetricDefinition struct {
	ID            int64
	EquipmentCode string
	Key           string
	ValueType     ValueType
	Unit          string
	Description   string
}

// Transform is an optional linear transform applied to numeric samples.
type Transform struct {
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// Identity reports whether the transform leaves values unchanged.
func (t Transform) Identity() bool {
	return (t.Scale == 0 || t.Scale == 1) && t.Offset == 0
}

// Apply maps a raw numeric value through the transform.
func (t Transform) Apply(v float64) float64 {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return v*scale + t.Offset
}

// MetricBinding maps a MetricDefinition to a source address. One definition
// has at most one active binding at a time.
type MetricBinding struct {
	ID           int64
	DefinitionID int64
	SourceName   string
	Address      string
	BitIndex     *int
	Transform    Transform
}

// FaultBit is a static fault catalog entry for one equipment status bit.
type FaultBit struct {
	ID            int64
	EquipmentCode string
	BitIndex      int
	Name          string
	Marker        Marker
}

// Equipment describes one machine on a production line, with the counter
// metrics and ideal rate used for aggregate calculations.
type Equipment struct {
	ID             int64
	Code           string
	LineID         string
	Description    string
	IdealCycleTime float64 // seconds per part
	GoodCountKey   string  // metric key of the good-parts counter
	TotalCountKey  string  // metric key of the total-parts counter
	Enabled        bool
}

// BoundMetric pairs a binding with its definition for poll scheduling.
type BoundMetric struct {
	Definition *MetricDefinition
	Binding    *MetricBinding
}
