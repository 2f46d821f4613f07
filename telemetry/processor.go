package telemetry

import (
	"errors"
	"log"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/poller"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// ProcessorEmitter receives normalized-sample notifications.
type ProcessorEmitter interface {
	EmitSampleNormalized(def *catalog.MetricDefinition, ts time.Time, v store.Value)
	EmitSampleDropped(source, address, reason string)
}

// Processor normalizes raw poll batches, persists them and runs fault edge
// detection for bit-bound metrics.
type Processor struct {
	db           *store.DB
	cat          *catalog.Catalog
	edge         *EdgeDetector
	emitter      ProcessorEmitter
	writeRetries int
}

// NewProcessor creates a processor.
func NewProcessor(db *store.DB, cat *catalog.Catalog, edge *EdgeDetector, emitter ProcessorEmitter, writeRetries int) *Processor {
	if writeRetries <= 0 {
		writeRetries = 3
	}
	return &Processor{db: db, cat: cat, edge: edge, emitter: emitter, writeRetries: writeRetries}
}

// HandleBatch processes one poll cycle's samples for a source. A malformed
// sample drops only itself; a persistent storage failure abandons the rest
// of the cycle so no partially-applied fault transitions are left behind.
func (p *Processor) HandleBatch(source string, batch []poller.RawSample) {
	byAddr := make(map[string]poller.RawSample, len(batch))
	for _, rs := range batch {
		byAddr[rs.Address] = rs
	}

	snap := p.cat.Snapshot()
	for _, bm := range snap.SourceBindings(source) {
		rs, ok := byAddr[bm.Binding.Address]
		if !ok {
			continue
		}
		if abandoned := p.handleSample(snap, bm, rs); abandoned {
			log.Printf("telemetry: abandoning remaining writes for %s this cycle", source)
			return
		}
	}
}

// handleSample returns true when the rest of the cycle should be abandoned.
func (p *Processor) handleSample(snap *catalog.Snapshot, bm catalog.BoundMetric, rs poller.RawSample) bool {
	def := bm.Definition
	v, err := Normalize(def, bm.Binding, rs.Value)
	if err != nil {
		log.Printf("telemetry: drop sample %s/%s: %v", rs.Source, rs.Address, err)
		p.emitter.EmitSampleDropped(rs.Source, rs.Address, err.Error())
		return false
	}

	if err := p.writeSample(def, rs.TS, v); err != nil {
		if errors.Is(err, store.ErrTypeMismatch) {
			log.Printf("telemetry: drop sample %s/%s: %v", rs.Source, rs.Address, err)
			p.emitter.EmitSampleDropped(rs.Source, rs.Address, err.Error())
			return false
		}
		log.Printf("telemetry: store write failed after %d attempts: %v", p.writeRetries, err)
		return true
	}

	p.emitter.EmitSampleNormalized(def, rs.TS, v)

	if bm.Binding.BitIndex != nil && v.Type == catalog.TypeBool {
		if fb, ok := snap.FaultBit(def.EquipmentCode, *bm.Binding.BitIndex); ok {
			if err := p.edge.Process(fb, v.Bool, rs.TS); err != nil && !errors.Is(err, ErrKeyQuarantined) {
				log.Printf("telemetry: edge detection %s bit %d: %v", def.EquipmentCode, *bm.Binding.BitIndex, err)
			}
		}
	}
	return false
}

// writeSample upserts the latest snapshot and appends history, retrying
// transient storage failures a bounded number of times.
func (p *Processor) writeSample(def *catalog.MetricDefinition, ts time.Time, v store.Value) error {
	var err error
	for attempt := 0; attempt < p.writeRetries; attempt++ {
		if err = p.db.UpsertLatest(def, ts, v); err != nil {
			if errors.Is(err, store.ErrTypeMismatch) {
				return err
			}
			continue
		}
		if err = p.db.AppendHistory(def, ts, v); err != nil {
			if errors.Is(err, store.ErrTypeMismatch) {
				return err
			}
			continue
		}
		return nil
	}
	return err
}
