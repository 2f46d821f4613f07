package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
)

// ErrTypeMismatch is returned when a write carries a value whose type does
// not match the metric's declared type. Values are never coerced.
var ErrTypeMismatch = errors.New("value type mismatch")

// LatestRow is one current-value snapshot row.
type LatestRow struct {
	DefinitionID  int64       `json:"definition_id"`
	EquipmentCode string      `json:"equipment_code"`
	Key           string      `json:"key"`
	TS            time.Time   `json:"ts"`
	Value         Value       `json:"value"`
	Unit          string      `json:"unit,omitempty"`
}

// UpsertLatest replaces the current value for a definition unconditionally.
// Last write wins by arrival order; polling is single-producer per key so
// arrival order is trusted.
func (db *DB) UpsertLatest(def *catalog.MetricDefinition, ts time.Time, v Value) error {
	if v.Type != def.ValueType {
		return fmt.Errorf("upsert latest %s/%s: %w: got %s, declared %s",
			def.EquipmentCode, def.Key, ErrTypeMismatch, v.Type, def.ValueType)
	}
	vbool, vint, vreal, vtext := v.columns()
	_, err := db.Exec(db.Q(`INSERT INTO metric_latest (definition_id, ts, value_type, vbool, vint, vreal, vtext)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (definition_id) DO UPDATE SET
			ts=excluded.ts, value_type=excluded.value_type,
			vbool=excluded.vbool, vint=excluded.vint, vreal=excluded.vreal, vtext=excluded.vtext`),
		def.ID, Millis(ts), string(v.Type), vbool, vint, vreal, vtext)
	if err != nil {
		return fmt.Errorf("upsert latest: %w", err)
	}
	return nil
}

// Latest returns the current value for one definition, or ok=false when the
// metric has never been sampled.
func (db *DB) Latest(defID int64) (LatestRow, bool, error) {
	row := db.QueryRow(db.Q(`SELECT l.definition_id, d.equipment_code, d.metric_key, d.unit, l.ts, l.value_type, l.vbool, l.vint, l.vreal, l.vtext
		FROM metric_latest l JOIN metric_definitions d ON d.id = l.definition_id
		WHERE l.definition_id=?`), defID)
	lr, err := scanLatest(row)
	if err == sql.ErrNoRows {
		return LatestRow{}, false, nil
	}
	if err != nil {
		return LatestRow{}, false, err
	}
	return lr, true, nil
}

// LatestForEquipment returns current values for every sampled metric on one
// equipment, ordered by metric key.
func (db *DB) LatestForEquipment(equipment string) ([]LatestRow, error) {
	rows, err := db.Query(db.Q(`SELECT l.definition_id, d.equipment_code, d.metric_key, d.unit, l.ts, l.value_type, l.vbool, l.vint, l.vreal, l.vtext
		FROM metric_latest l JOIN metric_definitions d ON d.id = l.definition_id
		WHERE d.equipment_code=? ORDER BY d.metric_key`), equipment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LatestRow{}
	for rows.Next() {
		lr, err := scanLatest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}

func scanLatest(row interface{ Scan(...any) error }) (LatestRow, error) {
	var lr LatestRow
	var ms int64
	var typ string
	var vbool, vint sql.NullInt64
	var vreal sql.NullFloat64
	var vtext sql.NullString
	if err := row.Scan(&lr.DefinitionID, &lr.EquipmentCode, &lr.Key, &lr.Unit, &ms, &typ, &vbool, &vint, &vreal, &vtext); err != nil {
		return LatestRow{}, err
	}
	lr.TS = FromMillis(ms)
	lr.Value = scanValue(typ, vbool, vint, vreal, vtext)
	return lr, nil
}
