package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoOpenFault is returned when closing a fault that has no open event.
var ErrNoOpenFault = errors.New("no open fault event")

// ErrFaultInvariant is returned when more than one open event exists for one
// (equipment, bit) key. The caller must halt edge processing for that key;
// the store never resolves the conflict by picking one.
var ErrFaultInvariant = errors.New("multiple open fault events for key")

// FaultActiveRow is the second-granularity snapshot of one fault bit.
type FaultActiveRow struct {
	EquipmentCode string    `json:"equipment_code"`
	BitIndex      int       `json:"bit_index"`
	State         bool      `json:"state"`
	TS            time.Time `json:"ts"`
	Name          string    `json:"name,omitempty"`
	Marker        string    `json:"marker,omitempty"`
}

// FaultEvent is one fault lifecycle record.
type FaultEvent struct {
	ID            int64      `json:"id"`
	EquipmentCode string     `json:"equipment_code"`
	BitIndex      int        `json:"bit_index"`
	TSOn          time.Time  `json:"ts_on"`
	TSOff         *time.Time `json:"ts_off,omitempty"`
	Duration      float64    `json:"duration_s,omitempty"` // seconds, 0 while open
	Name          string     `json:"name,omitempty"`
	Marker        string     `json:"marker,omitempty"`
}

// UpsertFaultActive overwrites the current state snapshot for one bit.
func (db *DB) UpsertFaultActive(equipment string, bit int, state bool, ts time.Time) error {
	_, err := db.Exec(db.Q(`INSERT INTO fault_active (equipment_code, bit_index, state, ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (equipment_code, bit_index) DO UPDATE SET state=excluded.state, ts=excluded.ts`),
		equipment, bit, boolToInt(state), Millis(ts))
	if err != nil {
		return fmt.Errorf("upsert fault active: %w", err)
	}
	return nil
}

// FaultActiveState returns the last known state for one bit. exists is false
// when the bit has never been observed.
func (db *DB) FaultActiveState(equipment string, bit int) (state bool, ts time.Time, exists bool, err error) {
	var st int
	var ms int64
	row := db.QueryRow(db.Q(`SELECT state, ts FROM fault_active WHERE equipment_code=? AND bit_index=?`), equipment, bit)
	if err := row.Scan(&st, &ms); err != nil {
		if err == sql.ErrNoRows {
			return false, time.Time{}, false, nil
		}
		return false, time.Time{}, false, err
	}
	return st != 0, FromMillis(ms), true, nil
}

// ActiveFaults returns all currently-raised fault bits for one equipment,
// annotated from the fault catalog.
func (db *DB) ActiveFaults(equipment string) ([]FaultActiveRow, error) {
	rows, err := db.Query(db.Q(`SELECT a.equipment_code, a.bit_index, a.state, a.ts,
			COALESCE(c.name, ''), COALESCE(c.marker, '')
		FROM fault_active a
		LEFT JOIN fault_catalog c ON c.equipment_code = a.equipment_code AND c.bit_index = a.bit_index
		WHERE a.equipment_code=? AND a.state=1 ORDER BY a.bit_index`), equipment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FaultActiveRow{}
	for rows.Next() {
		var fa FaultActiveRow
		var st int
		var ms int64
		if err := rows.Scan(&fa.EquipmentCode, &fa.BitIndex, &st, &ms, &fa.Name, &fa.Marker); err != nil {
			return nil, err
		}
		fa.State = st != 0
		fa.TS = FromMillis(ms)
		out = append(out, fa)
	}
	return out, rows.Err()
}

// OpenFaultEventCount returns the number of open events for one bit.
func (db *DB) OpenFaultEventCount(equipment string, bit int) (int, error) {
	var n int
	row := db.QueryRow(db.Q(`SELECT COUNT(*) FROM fault_events WHERE equipment_code=? AND bit_index=? AND ts_off IS NULL`), equipment, bit)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// RecordFaultRising opens a fault event and flips the active snapshot to
// true, atomically. Fails with ErrFaultInvariant if an open event already
// exists for the key.
func (db *DB) RecordFaultRising(equipment string, bit int, ts time.Time) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var open int
	if err := tx.QueryRow(db.Q(`SELECT COUNT(*) FROM fault_events WHERE equipment_code=? AND bit_index=? AND ts_off IS NULL`),
		equipment, bit).Scan(&open); err != nil {
		return 0, err
	}
	if open > 0 {
		return 0, fmt.Errorf("rising edge %s bit %d: %w", equipment, bit, ErrFaultInvariant)
	}

	var id int64
	if err := tx.QueryRow(db.Q(`INSERT INTO fault_events (equipment_code, bit_index, ts_on) VALUES (?, ?, ?) RETURNING id`),
		equipment, bit, Millis(ts)).Scan(&id); err != nil {
		return 0, fmt.Errorf("open fault event: %w", err)
	}
	if _, err := tx.Exec(db.Q(`INSERT INTO fault_active (equipment_code, bit_index, state, ts)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (equipment_code, bit_index) DO UPDATE SET state=1, ts=excluded.ts`),
		equipment, bit, Millis(ts)); err != nil {
		return 0, fmt.Errorf("set fault active: %w", err)
	}
	return id, tx.Commit()
}

// RecordFaultFalling closes the open fault event for the key and flips the
// active snapshot to false, atomically. The closed event, with its computed
// duration, is returned.
func (db *DB) RecordFaultFalling(equipment string, bit int, ts time.Time) (FaultEvent, error) {
	tx, err := db.Begin()
	if err != nil {
		return FaultEvent{}, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(db.Q(`SELECT id, ts_on FROM fault_events WHERE equipment_code=? AND bit_index=? AND ts_off IS NULL`),
		equipment, bit)
	if err != nil {
		return FaultEvent{}, err
	}
	type openEvt struct {
		id   int64
		tsOn int64
	}
	var opens []openEvt
	for rows.Next() {
		var e openEvt
		if err := rows.Scan(&e.id, &e.tsOn); err != nil {
			rows.Close()
			return FaultEvent{}, err
		}
		opens = append(opens, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return FaultEvent{}, err
	}

	switch {
	case len(opens) == 0:
		return FaultEvent{}, fmt.Errorf("falling edge %s bit %d: %w", equipment, bit, ErrNoOpenFault)
	case len(opens) > 1:
		return FaultEvent{}, fmt.Errorf("falling edge %s bit %d: %w", equipment, bit, ErrFaultInvariant)
	}

	evt := opens[0]
	offMs := Millis(ts)
	durMs := offMs - evt.tsOn
	if _, err := tx.Exec(db.Q(`UPDATE fault_events SET ts_off=?, duration_ms=? WHERE id=?`), offMs, durMs, evt.id); err != nil {
		return FaultEvent{}, fmt.Errorf("close fault event: %w", err)
	}
	if _, err := tx.Exec(db.Q(`INSERT INTO fault_active (equipment_code, bit_index, state, ts)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (equipment_code, bit_index) DO UPDATE SET state=0, ts=excluded.ts`),
		equipment, bit, offMs); err != nil {
		return FaultEvent{}, fmt.Errorf("clear fault active: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return FaultEvent{}, err
	}

	off := FromMillis(offMs)
	return FaultEvent{
		ID:            evt.id,
		EquipmentCode: equipment,
		BitIndex:      bit,
		TSOn:          FromMillis(evt.tsOn),
		TSOff:         &off,
		Duration:      float64(durMs) / 1000.0,
	}, nil
}

// FaultEvents returns fault events for one equipment whose onset falls in
// [start, end], timestamp ascending. marker filters by fault catalog marker
// when non-empty.
func (db *DB) FaultEvents(equipment string, start, end time.Time, marker string) ([]FaultEvent, error) {
	q := `SELECT e.id, e.equipment_code, e.bit_index, e.ts_on, e.ts_off, e.duration_ms,
			COALESCE(c.name, ''), COALESCE(c.marker, '')
		FROM fault_events e
		LEFT JOIN fault_catalog c ON c.equipment_code = e.equipment_code AND c.bit_index = e.bit_index
		WHERE e.equipment_code=? AND e.ts_on>=? AND e.ts_on<=?`
	args := []any{equipment, Millis(start), Millis(end)}
	if marker != "" {
		q += ` AND c.marker=?`
		args = append(args, marker)
	}
	q += ` ORDER BY e.ts_on, e.id`

	rows, err := db.Query(db.Q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FaultEvent{}
	for rows.Next() {
		var fe FaultEvent
		var onMs int64
		var offMs, durMs sql.NullInt64
		if err := rows.Scan(&fe.ID, &fe.EquipmentCode, &fe.BitIndex, &onMs, &offMs, &durMs, &fe.Name, &fe.Marker); err != nil {
			return nil, err
		}
		fe.TSOn = FromMillis(onMs)
		if offMs.Valid {
			off := FromMillis(offMs.Int64)
			fe.TSOff = &off
		}
		if durMs.Valid {
			fe.Duration = float64(durMs.Int64) / 1000.0
		}
		out = append(out, fe)
	}
	return out, rows.Err()
}

// FaultDowntime sums fault time overlapping [start, end] for one equipment,
// counting only catalog bits with the given marker (all bits when marker is
// empty). Open events accrue downtime up to end.
func (db *DB) FaultDowntime(equipment string, start, end time.Time, marker string) (time.Duration, error) {
	q := `SELECT e.ts_on, e.ts_off FROM fault_events e
		LEFT JOIN fault_catalog c ON c.equipment_code = e.equipment_code AND c.bit_index = e.bit_index
		WHERE e.equipment_code=? AND e.ts_on<=? AND (e.ts_off IS NULL OR e.ts_off>=?)`
	args := []any{equipment, Millis(end), Millis(start)}
	if marker != "" {
		q += ` AND c.marker=?`
		args = append(args, marker)
	}
	rows, err := db.Query(db.Q(q), args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	startMs, endMs := Millis(start), Millis(end)
	var totalMs int64
	for rows.Next() {
		var onMs int64
		var offMs sql.NullInt64
		if err := rows.Scan(&onMs, &offMs); err != nil {
			return 0, err
		}
		from := onMs
		if from < startMs {
			from = startMs
		}
		to := endMs
		if offMs.Valid && offMs.Int64 < endMs {
			to = offMs.Int64
		}
		if to > from {
			totalMs += to - from
		}
	}
	return time.Duration(totalMs) * time.Millisecond, rows.Err()
}
