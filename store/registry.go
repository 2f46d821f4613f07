package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
)

// Registry rows: metric definitions, bindings, fault catalog and equipment.
// These are configuration input, written by the configuration interface,
// read-mostly at runtime through catalog.Snapshot.

// CreateMetricDefinition inserts a definition and assigns its ID.
func (db *DB) CreateMetricDefinition(d *catalog.MetricDefinition) error {
	if !d.ValueType.Valid() {
		return fmt.Errorf("create definition %s/%s: %w: %q", d.EquipmentCode, d.Key, ErrTypeMismatch, d.ValueType)
	}
	row := db.QueryRow(db.Q(`INSERT INTO metric_definitions (equipment_code, metric_key, value_type, unit, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		d.EquipmentCode, d.Key, string(d.ValueType), d.Unit, d.Description, Millis(time.Now()))
	if err := row.Scan(&d.ID); err != nil {
		return fmt.Errorf("create definition: %w", err)
	}
	return nil
}

// CreateMetricBinding inserts a binding and assigns its ID. The UNIQUE
// constraint on definition_id enforces one active binding per definition.
func (db *DB) CreateMetricBinding(b *catalog.MetricBinding) error {
	var bit any
	if b.BitIndex != nil {
		bit = *b.BitIndex
	}
	scale := b.Transform.Scale
	if scale == 0 {
		scale = 1
	}
	row := db.QueryRow(db.Q(`INSERT INTO metric_bindings (definition_id, source_name, address, bit_index, xform_scale, xform_offset)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		b.DefinitionID, b.SourceName, b.Address, bit, scale, b.Transform.Offset)
	if err := row.Scan(&b.ID); err != nil {
		return fmt.Errorf("create binding: %w", err)
	}
	return nil
}

// ReplaceMetricBinding swaps the active binding for a definition.
func (db *DB) ReplaceMetricBinding(b *catalog.MetricBinding) error {
	if _, err := db.Exec(db.Q(`DELETE FROM metric_bindings WHERE definition_id=?`), b.DefinitionID); err != nil {
		return fmt.Errorf("replace binding: %w", err)
	}
	return db.CreateMetricBinding(b)
}

// CreateFaultBit inserts a fault catalog entry and assigns its ID.
func (db *DB) CreateFaultBit(f *catalog.FaultBit) error {
	row := db.QueryRow(db.Q(`INSERT INTO fault_catalog (equipment_code, bit_index, name, marker)
		VALUES (?, ?, ?, ?) RETURNING id`),
		f.EquipmentCode, f.BitIndex, f.Name, string(f.Marker))
	if err := row.Scan(&f.ID); err != nil {
		return fmt.Errorf("create fault bit: %w", err)
	}
	return nil
}

// CreateEquipment inserts an equipment row and assigns its ID.
func (db *DB) CreateEquipment(e *catalog.Equipment) error {
	row := db.QueryRow(db.Q(`INSERT INTO equipment (code, line_id, description, ideal_cycle_time, good_count_key, total_count_key, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		e.Code, e.LineID, e.Description, e.IdealCycleTime, e.GoodCountKey, e.TotalCountKey, boolToInt(e.Enabled))
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("create equipment: %w", err)
	}
	return nil
}

// ListMetricDefinitions returns all definitions ordered by equipment and key.
func (db *DB) ListMetricDefinitions() ([]*catalog.MetricDefinition, error) {
	rows, err := db.Query(`SELECT id, equipment_code, metric_key, value_type, unit, description
		FROM metric_definitions ORDER BY equipment_code, metric_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*catalog.MetricDefinition
	for rows.Next() {
		var d catalog.MetricDefinition
		var vt string
		if err := rows.Scan(&d.ID, &d.EquipmentCode, &d.Key, &vt, &d.Unit, &d.Description); err != nil {
			return nil, err
		}
		d.ValueType = catalog.ValueType(vt)
		defs = append(defs, &d)
	}
	return defs, rows.Err()
}

// ListMetricBindings returns all active bindings.
func (db *DB) ListMetricBindings() ([]*catalog.MetricBinding, error) {
	rows, err := db.Query(`SELECT id, definition_id, source_name, address, bit_index, xform_scale, xform_offset
		FROM metric_bindings ORDER BY source_name, address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bindings []*catalog.MetricBinding
	for rows.Next() {
		var b catalog.MetricBinding
		var bit sql.NullInt64
		if err := rows.Scan(&b.ID, &b.DefinitionID, &b.SourceName, &b.Address, &bit, &b.Transform.Scale, &b.Transform.Offset); err != nil {
			return nil, err
		}
		if bit.Valid {
			v := int(bit.Int64)
			b.BitIndex = &v
		}
		bindings = append(bindings, &b)
	}
	return bindings, rows.Err()
}

// ListFaultBits returns the full fault catalog.
func (db *DB) ListFaultBits() ([]*catalog.FaultBit, error) {
	rows, err := db.Query(`SELECT id, equipment_code, bit_index, name, marker
		FROM fault_catalog ORDER BY equipment_code, bit_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bits []*catalog.FaultBit
	for rows.Next() {
		var f catalog.FaultBit
		var marker string
		if err := rows.Scan(&f.ID, &f.EquipmentCode, &f.BitIndex, &f.Name, &marker); err != nil {
			return nil, err
		}
		f.Marker = catalog.Marker(marker)
		bits = append(bits, &f)
	}
	return bits, rows.Err()
}

// ListEquipment returns all registered equipment.
func (db *DB) ListEquipment() ([]*catalog.Equipment, error) {
	rows, err := db.Query(`SELECT id, code, line_id, description, ideal_cycle_time, good_count_key, total_count_key, enabled
		FROM equipment ORDER BY line_id, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var eqs []*catalog.Equipment
	for rows.Next() {
		var e catalog.Equipment
		var enabled int
		if err := rows.Scan(&e.ID, &e.Code, &e.LineID, &e.Description, &e.IdealCycleTime, &e.GoodCountKey, &e.TotalCountKey, &enabled); err != nil {
			return nil, err
		}
		e.Enabled = enabled != 0
		eqs = append(eqs, &e)
	}
	return eqs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
