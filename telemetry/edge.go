package telemetry

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// ErrKeyQuarantined is returned for edges on a key whose fault records were
// found in an inconsistent state. The key stays quarantined until manually
// reconciled; the detector never picks a winner among duplicate open events.
var ErrKeyQuarantined = errors.New("fault key quarantined")

// EdgeEmitter receives fault lifecycle events from the detector.
type EdgeEmitter interface {
	EmitFaultOpened(equipment string, bit int, name string, marker catalog.Marker, ts time.Time)
	EmitFaultClosed(equipment string, bit int, name string, marker catalog.Marker, tsOn, tsOff time.Time, duration time.Duration)
}

// keyState serializes edge handling for one (equipment, bit) key. The
// previous state is primed from the FaultActive snapshot, never from samples
// in the same poll batch, so repeated samples in one tick cannot
// double-trigger.
type keyState struct {
	mu          sync.Mutex
	loaded      bool
	state       bool
	quarantined bool
}

// EdgeDetector turns boolean fault-bit samples into open/close fault events.
// Detection for different keys runs concurrently; per key it is single-writer.
type EdgeDetector struct {
	db      *store.DB
	emitter EdgeEmitter

	mu   sync.Mutex
	keys map[string]*keyState
}

// NewEdgeDetector creates a detector backed by the time-series store.
func NewEdgeDetector(db *store.DB, emitter EdgeEmitter) *EdgeDetector {
	return &EdgeDetector{
		db:      db,
		emitter: emitter,
		keys:    make(map[string]*keyState),
	}
}

func (d *EdgeDetector) key(equipment string, bit int) *keyState {
	k := fmt.Sprintf("%s/%d", equipment, bit)
	d.mu.Lock()
	defer d.mu.Unlock()
	ks, ok := d.keys[k]
	if !ok {
		ks = &keyState{}
		d.keys[k] = ks
	}
	return ks
}

// Process handles one boolean sample for a fault bit. No event is emitted
// when the state is unchanged; the FaultActive snapshot timestamp is still
// refreshed each cycle.
func (d *EdgeDetector) Process(fb *catalog.FaultBit, newState bool, ts time.Time) error {
	ks := d.key(fb.EquipmentCode, fb.BitIndex)
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.quarantined {
		return fmt.Errorf("%s bit %d: %w", fb.EquipmentCode, fb.BitIndex, ErrKeyQuarantined)
	}

	if !ks.loaded {
		prev, _, exists, err := d.db.FaultActiveState(fb.EquipmentCode, fb.BitIndex)
		if err != nil {
			return fmt.Errorf("load fault state %s bit %d: %w", fb.EquipmentCode, fb.BitIndex, err)
		}
		ks.state = exists && prev
		ks.loaded = true
	}

	switch {
	case newState && !ks.state:
		if _, err := d.db.RecordFaultRising(fb.EquipmentCode, fb.BitIndex, ts); err != nil {
			if errors.Is(err, store.ErrFaultInvariant) {
				d.quarantine(ks, fb, err)
			}
			return err
		}
		ks.state = true
		d.emitter.EmitFaultOpened(fb.EquipmentCode, fb.BitIndex, fb.Name, fb.Marker, ts)

	case !newState && ks.state:
		evt, err := d.db.RecordFaultFalling(fb.EquipmentCode, fb.BitIndex, ts)
		if err != nil {
			if errors.Is(err, store.ErrFaultInvariant) {
				d.quarantine(ks, fb, err)
				return err
			}
			if errors.Is(err, store.ErrNoOpenFault) {
				// State tracked as raised but no open event; likely history
				// that predates tracking. Clear the snapshot and move on.
				log.Printf("edge: %s bit %d fell with no open event", fb.EquipmentCode, fb.BitIndex)
				if uerr := d.db.UpsertFaultActive(fb.EquipmentCode, fb.BitIndex, false, ts); uerr != nil {
					return uerr
				}
				ks.state = false
				return nil
			}
			return err
		}
		ks.state = false
		d.emitter.EmitFaultClosed(fb.EquipmentCode, fb.BitIndex, fb.Name, fb.Marker,
			evt.TSOn, *evt.TSOff, time.Duration(evt.Duration*float64(time.Second)))

	default:
		// No transition; refresh the snapshot timestamp.
		if err := d.db.UpsertFaultActive(fb.EquipmentCode, fb.BitIndex, newState, ts); err != nil {
			return err
		}
	}
	return nil
}

// QuarantinedKeys returns the sorted "equipment/bit" keys currently halted
// pending manual reconciliation. Empty when nothing is quarantined.
func (d *EdgeDetector) QuarantinedKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []string{}
	for k, ks := range d.keys {
		ks.mu.Lock()
		q := ks.quarantined
		ks.mu.Unlock()
		if q {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Quarantined reports whether a key is halted pending manual reconciliation.
func (d *EdgeDetector) Quarantined(equipment string, bit int) bool {
	ks := d.key(equipment, bit)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.quarantined
}

func (d *EdgeDetector) quarantine(ks *keyState, fb *catalog.FaultBit, cause error) {
	ks.quarantined = true
	log.Printf("edge: quarantining %s bit %d until manually reconciled: %v", fb.EquipmentCode, fb.BitIndex, cause)
}
