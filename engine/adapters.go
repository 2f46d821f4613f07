package engine

import (
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/poller"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// pollEmitter adapts the engine's EventBus to the poller.Emitter interface.
// Raw batches go straight to the processor; only health transitions reach
// the bus.
type pollEmitter struct {
	bus     *EventBus
	handler func(source string, samples []poller.RawSample)
}

func (e *pollEmitter) EmitBatch(source string, samples []poller.RawSample) {
	e.handler(source, samples)
}

func (e *pollEmitter) EmitSourceDown(source string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	e.bus.Emit(Event{Type: EventSourceDown, Payload: SourceEvent{Source: source, Error: errStr}})
}

func (e *pollEmitter) EmitSourceUp(source string) {
	e.bus.Emit(Event{Type: EventSourceUp, Payload: SourceEvent{Source: source}})
}

// sampleEmitter adapts the EventBus to the telemetry.ProcessorEmitter interface.
type sampleEmitter struct {
	bus *EventBus
}

func (e *sampleEmitter) EmitSampleNormalized(def *catalog.MetricDefinition, ts time.Time, v store.Value) {
	e.bus.Emit(Event{Type: EventSampleNormalized, Payload: SampleEvent{
		DefinitionID: def.ID, Equipment: def.EquipmentCode, Key: def.Key, Value: v, TS: ts,
	}})
}

func (e *sampleEmitter) EmitSampleDropped(source, address, reason string) {
	e.bus.Emit(Event{Type: EventSampleDropped, Payload: SampleDroppedEvent{
		Source: source, Address: address, Reason: reason,
	}})
}

// faultEmitter adapts the EventBus to the telemetry.EdgeEmitter interface.
type faultEmitter struct {
	bus *EventBus
}

func (e *faultEmitter) EmitFaultOpened(equipment string, bit int, name string, marker catalog.Marker, ts time.Time) {
	e.bus.Emit(Event{Type: EventFaultOpened, Payload: FaultOpenedEvent{
		Equipment: equipment, Bit: bit, Name: name, Marker: marker, TsOn: ts,
	}})
}

func (e *faultEmitter) EmitFaultClosed(equipment string, bit int, name string, marker catalog.Marker, tsOn, tsOff time.Time, duration time.Duration) {
	e.bus.Emit(Event{Type: EventFaultClosed, Payload: FaultClosedEvent{
		Equipment: equipment, Bit: bit, Name: name, Marker: marker,
		TsOn: tsOn, TsOff: tsOff, DurationS: duration.Seconds(),
	}})
}

// oeeEmitter adapts the EventBus to the oee.Emitter interface.
type oeeEmitter struct {
	bus *EventBus
}

func (e *oeeEmitter) EmitOEEComputed(row store.OEERow) {
	e.bus.Emit(Event{Type: EventOEEComputed, Payload: OEEComputedEvent{Row: row}})
}

// catalogEmitter adapts the EventBus to the catalog.RefreshEmitter interface.
type catalogEmitter struct {
	bus *EventBus
}

func (e *catalogEmitter) EmitCatalogReloaded(definitions, bindings int) {
	e.bus.Emit(Event{Type: EventCatalogReloaded, Payload: CatalogReloadedEvent{
		Definitions: definitions, Bindings: bindings,
	}})
}
