package engine

import (
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Telemetry events
	EventSampleNormalized EventType = iota + 1
	EventSampleDropped

	// Fault events
	EventFaultOpened
	EventFaultClosed

	// Source health events
	EventSourceUp
	EventSourceDown

	// Aggregate events
	EventOEEComputed

	// Registry events
	EventCatalogReloaded
)

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventSampleNormalized:
		return "sample"
	case EventSampleDropped:
		return "sample_dropped"
	case EventFaultOpened:
		return "fault_opened"
	case EventFaultClosed:
		return "fault_closed"
	case EventSourceUp:
		return "source_up"
	case EventSourceDown:
		return "source_down"
	case EventOEEComputed:
		return "oee"
	case EventCatalogReloaded:
		return "catalog_reloaded"
	}
	return "unknown"
}

// Event is the envelope dispatched on the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// SampleEvent is emitted for every normalized sample written to the store.
type SampleEvent struct {
	DefinitionID int64       `json:"definition_id"`
	Equipment    string      `json:"equipment"`
	Key          string      `json:"key"`
	Value        store.Value `json:"value"`
	TS           time.Time   `json:"ts"`
}

// SampleDroppedEvent is emitted when a raw sample fails normalization or
// type checking and is discarded.
type SampleDroppedEvent struct {
	Source  string `json:"source"`
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

// FaultOpenedEvent is emitted on a rising fault edge.
type FaultOpenedEvent struct {
	Equipment string         `json:"equipment"`
	Bit       int            `json:"bit"`
	Name      string         `json:"name"`
	Marker    catalog.Marker `json:"marker"`
	TsOn      time.Time      `json:"ts_on"`
}

// FaultClosedEvent is emitted on a falling fault edge.
type FaultClosedEvent struct {
	Equipment string         `json:"equipment"`
	Bit       int            `json:"bit"`
	Name      string         `json:"name"`
	Marker    catalog.Marker `json:"marker"`
	TsOn      time.Time      `json:"ts_on"`
	TsOff     time.Time      `json:"ts_off"`
	DurationS float64        `json:"duration_s"`
}

// SourceEvent is emitted when a polled source changes health state.
type SourceEvent struct {
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// OEEComputedEvent is emitted after each aggregate calculation cycle.
type OEEComputedEvent struct {
	Row store.OEERow `json:"row"`
}

// CatalogReloadedEvent is emitted after a successful registry refresh.
type CatalogReloadedEvent struct {
	Definitions int `json:"definitions"`
	Bindings    int `json:"bindings"`
}
