package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
)

// History chunks: eligible spans of old history rows are re-packed into one
// zstd-compressed row per (definition, hour). Purely a storage optimization;
// History() merges chunk contents back so query results are unchanged.

const chunkSpanMs = int64(time.Hour / time.Millisecond)

// chunkSample is the wire form of one sample inside a chunk.
type chunkSample struct {
	TS int64    `json:"t"`
	VT string   `json:"vt"`
	B  *int64   `json:"b,omitempty"`
	I  *int64   `json:"i,omitempty"`
	R  *float64 `json:"r,omitempty"`
	S  *string  `json:"s,omitempty"`
}

func encodeChunk(samples []chunkSample) ([]byte, error) {
	raw, err := json.Marshal(samples)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decodeChunk(data []byte) ([]chunkSample, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	var samples []chunkSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func toChunkSample(ms int64, v Value) chunkSample {
	cs := chunkSample{TS: ms, VT: string(v.Type)}
	switch v.Type {
	case catalog.TypeBool:
		b := int64(0)
		if v.Bool {
			b = 1
		}
		cs.B = &b
	case catalog.TypeInt:
		i := v.Int
		cs.I = &i
	case catalog.TypeReal:
		r := v.Real
		cs.R = &r
	default:
		s := v.Text
		cs.S = &s
	}
	return cs
}

func fromChunkSample(cs chunkSample) (int64, Value) {
	vt := catalog.ValueType(cs.VT)
	v := Value{Type: vt}
	switch vt {
	case catalog.TypeBool:
		v.Bool = cs.B != nil && *cs.B != 0
	case catalog.TypeInt:
		if cs.I != nil {
			v.Int = *cs.I
		}
	case catalog.TypeReal:
		if cs.R != nil {
			v.Real = *cs.R
		}
	default:
		if cs.S != nil {
			v.Text = *cs.S
		}
	}
	return cs.TS, v
}

// ApplyCompression re-packs live history rows older than age into compressed
// chunks, one hour-aligned chunk per definition at a time. Each chunk is
// built and its source rows removed inside one short transaction so writers
// are never blocked for long. Returns the number of chunks written.
func (db *DB) ApplyCompression(age time.Duration) (int, error) {
	cutoff := Millis(time.Now().Add(-age))
	chunks := 0
	for {
		n, err := db.compressOneChunk(cutoff)
		if err != nil {
			return chunks, err
		}
		if n == 0 {
			return chunks, nil
		}
		chunks++
	}
}

func (db *DB) compressOneChunk(cutoffMs int64) (int, error) {
	// Oldest (definition, hour bucket) still live below the cutoff.
	var defID, bucket int64
	err := db.QueryRow(db.Q(`SELECT definition_id, ts/? FROM metric_history
		WHERE ts < ? ORDER BY ts LIMIT 1`), chunkSpanMs, cutoffMs).Scan(&defID, &bucket)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	bucketStart := bucket * chunkSpanMs
	bucketEnd := bucketStart + chunkSpanMs - 1
	// Never compress a bucket that could still receive in-horizon rows.
	if bucketEnd >= cutoffMs {
		bucketEnd = cutoffMs - 1
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(db.Q(`SELECT ts, value_type, vbool, vint, vreal, vtext
		FROM metric_history WHERE definition_id=? AND ts>=? AND ts<=? ORDER BY ts, id`),
		defID, bucketStart, bucketEnd)
	if err != nil {
		return 0, err
	}
	var samples []chunkSample
	var minTS, maxTS int64
	for rows.Next() {
		var ms int64
		var typ string
		var vbool, vint sql.NullInt64
		var vreal sql.NullFloat64
		var vtext sql.NullString
		if err := rows.Scan(&ms, &typ, &vbool, &vint, &vreal, &vtext); err != nil {
			rows.Close()
			return 0, err
		}
		v := scanValue(typ, vbool, vint, vreal, vtext)
		samples = append(samples, toChunkSample(ms, v))
		if len(samples) == 1 || ms < minTS {
			minTS = ms
		}
		if ms > maxTS {
			maxTS = ms
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, nil
	}

	data, err := encodeChunk(samples)
	if err != nil {
		return 0, fmt.Errorf("encode chunk def=%d: %w", defID, err)
	}
	if _, err := tx.Exec(db.Q(`INSERT INTO metric_history_chunks (definition_id, start_ts, end_ts, row_count, codec, data)
		VALUES (?, ?, ?, ?, 'zstd', ?)`), defID, minTS, maxTS, len(samples), data); err != nil {
		return 0, fmt.Errorf("insert chunk def=%d: %w", defID, err)
	}
	if _, err := tx.Exec(db.Q(`DELETE FROM metric_history WHERE definition_id=? AND ts>=? AND ts<=?`),
		defID, bucketStart, bucketEnd); err != nil {
		return 0, fmt.Errorf("drop chunked rows def=%d: %w", defID, err)
	}
	return len(samples), tx.Commit()
}

func (db *DB) chunkedHistory(defID int64, start, end time.Time) ([]HistoryRow, error) {
	startMs, endMs := Millis(start), Millis(end)
	rows, err := db.Query(db.Q(`SELECT data FROM metric_history_chunks
		WHERE definition_id=? AND start_ts<=? AND end_ts>=? ORDER BY start_ts`),
		defID, endMs, startMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryRow
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		samples, err := decodeChunk(data)
		if err != nil {
			return nil, fmt.Errorf("decode chunk def=%d: %w", defID, err)
		}
		for _, cs := range samples {
			ms, v := fromChunkSample(cs)
			if ms < startMs || ms > endMs {
				continue
			}
			out = append(out, HistoryRow{DefinitionID: defID, TS: FromMillis(ms), Value: v})
		}
	}
	return out, rows.Err()
}
