package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
)

// HistoryRow is one append-only history sample.
type HistoryRow struct {
	DefinitionID int64     `json:"definition_id"`
	TS           time.Time `json:"ts"`
	Value        Value     `json:"value"`
}

// AppendHistory inserts one history sample. Insert-only; nothing updates or
// deletes history rows except retention.
func (db *DB) AppendHistory(def *catalog.MetricDefinition, ts time.Time, v Value) error {
	if v.Type != def.ValueType {
		return fmt.Errorf("append history %s/%s: %w: got %s, declared %s",
			def.EquipmentCode, def.Key, ErrTypeMismatch, v.Type, def.ValueType)
	}
	vbool, vint, vreal, vtext := v.columns()
	_, err := db.Exec(db.Q(`INSERT INTO metric_history (definition_id, ts, value_type, vbool, vint, vreal, vtext)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		def.ID, Millis(ts), string(v.Type), vbool, vint, vreal, vtext)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns samples for a definition in [start, end], timestamp
// ascending. Compressed chunks overlapping the range are read back
// transparently; compression never changes a queried value.
func (db *DB) History(defID int64, start, end time.Time) ([]HistoryRow, error) {
	live, err := db.liveHistory(defID, start, end)
	if err != nil {
		return nil, err
	}
	chunked, err := db.chunkedHistory(defID, start, end)
	if err != nil {
		return nil, err
	}
	if len(chunked) == 0 {
		return live, nil
	}
	out := append(chunked, live...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out, nil
}

func (db *DB) liveHistory(defID int64, start, end time.Time) ([]HistoryRow, error) {
	rows, err := db.Query(db.Q(`SELECT definition_id, ts, value_type, vbool, vint, vreal, vtext
		FROM metric_history WHERE definition_id=? AND ts>=? AND ts<=? ORDER BY ts, id`),
		defID, Millis(start), Millis(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []HistoryRow{}
	for rows.Next() {
		hr, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, hr)
	}
	return out, rows.Err()
}

func scanHistory(rows *sql.Rows) (HistoryRow, error) {
	var hr HistoryRow
	var ms int64
	var typ string
	var vbool, vint sql.NullInt64
	var vreal sql.NullFloat64
	var vtext sql.NullString
	if err := rows.Scan(&hr.DefinitionID, &ms, &typ, &vbool, &vint, &vreal, &vtext); err != nil {
		return HistoryRow{}, err
	}
	hr.TS = FromMillis(ms)
	hr.Value = scanValue(typ, vbool, vint, vreal, vtext)
	return hr, nil
}

// CounterWindow returns the first and last integer samples for a definition
// within [start, end]. ok is false when the window holds no samples. Used by
// the aggregate calculator to difference monotonic counters.
func (db *DB) CounterWindow(defID int64, start, end time.Time) (first, last int64, ok bool, err error) {
	rows, err := db.History(defID, start, end)
	if err != nil {
		return 0, 0, false, err
	}
	found := false
	for _, r := range rows {
		if r.Value.Type != catalog.TypeInt {
			continue
		}
		if !found {
			first = r.Value.Int
			found = true
		}
		last = r.Value.Int
	}
	return first, last, found, nil
}
