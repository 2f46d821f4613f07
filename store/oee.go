package store

import (
	"fmt"
	"time"
)

// OEERow is one periodic aggregate snapshot. Append-only; never mutated
// after insert.
type OEERow struct {
	ID            int64     `json:"id"`
	LineID        string    `json:"line_id"`
	EquipmentCode string    `json:"equipment_code"`
	TS            time.Time `json:"ts"`
	Availability  float64   `json:"availability"`
	Performance   float64   `json:"performance"`
	Quality       float64   `json:"quality"`
	OEE           float64   `json:"oee"`
	PlannedTimeS  float64   `json:"planned_time_s"`
	RuntimeS      float64   `json:"runtime_s"`
	DowntimeS     float64   `json:"downtime_s"`
	GoodParts     int64     `json:"good_parts"`
	TotalParts    int64     `json:"total_parts"`
	Informational bool      `json:"informational"`
}

// InsertOEE appends one calculation snapshot and assigns its ID.
func (db *DB) InsertOEE(r *OEERow) error {
	row := db.QueryRow(db.Q(`INSERT INTO oee_calculations
		(line_id, equipment_code, ts, availability, performance, quality, oee,
		 planned_time_s, runtime_s, downtime_s, good_parts, total_parts, informational)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		r.LineID, r.EquipmentCode, Millis(r.TS), r.Availability, r.Performance, r.Quality, r.OEE,
		r.PlannedTimeS, r.RuntimeS, r.DowntimeS, r.GoodParts, r.TotalParts, boolToInt(r.Informational))
	if err := row.Scan(&r.ID); err != nil {
		return fmt.Errorf("insert oee: %w", err)
	}
	return nil
}

// OEEForLine returns calculations for one line in [start, end], ascending.
func (db *DB) OEEForLine(lineID string, start, end time.Time) ([]OEERow, error) {
	return db.oeeRange(`line_id`, lineID, start, end)
}

// OEEForEquipment returns calculations for one equipment in [start, end], ascending.
func (db *DB) OEEForEquipment(equipment string, start, end time.Time) ([]OEERow, error) {
	return db.oeeRange(`equipment_code`, equipment, start, end)
}

func (db *DB) oeeRange(col, val string, start, end time.Time) ([]OEERow, error) {
	q := fmt.Sprintf(`SELECT id, line_id, equipment_code, ts, availability, performance, quality, oee,
			planned_time_s, runtime_s, downtime_s, good_parts, total_parts, informational
		FROM oee_calculations WHERE %s=? AND ts>=? AND ts<=? ORDER BY ts, id`, col)
	rows, err := db.Query(db.Q(q), val, Millis(start), Millis(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []OEERow{}
	for rows.Next() {
		var r OEERow
		var ms int64
		var info int
		if err := rows.Scan(&r.ID, &r.LineID, &r.EquipmentCode, &ms, &r.Availability, &r.Performance, &r.Quality, &r.OEE,
			&r.PlannedTimeS, &r.RuntimeS, &r.DowntimeS, &r.GoodParts, &r.TotalParts, &info); err != nil {
			return nil, err
		}
		r.TS = FromMillis(ms)
		r.Informational = info != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
