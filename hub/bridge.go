package hub

import (
	"github.com/Dashboard4-0/MS5-App-sub002/engine"
)

// AttachEngine wires engine events onto the hub. Frames are targeted so
// dashboards can subscribe to a single line or equipment: samples and faults
// by equipment code, aggregates by line ID, source health by source name.
func (h *Hub) AttachEngine(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		switch p := evt.Payload.(type) {
		case engine.SampleEvent:
			h.Publish(evt.Type.String(), p.Equipment, p)
		case engine.FaultOpenedEvent:
			h.Publish(evt.Type.String(), p.Equipment, p)
		case engine.FaultClosedEvent:
			h.Publish(evt.Type.String(), p.Equipment, p)
		case engine.SourceEvent:
			h.Publish(evt.Type.String(), p.Source, p)
		case engine.OEEComputedEvent:
			h.Publish(evt.Type.String(), p.Row.LineID, p.Row)
		case engine.CatalogReloadedEvent:
			h.Publish(evt.Type.String(), TargetAll, p)
		}
	}, engine.EventSampleNormalized, engine.EventFaultOpened, engine.EventFaultClosed,
		engine.EventSourceUp, engine.EventSourceDown,
		engine.EventOEEComputed, engine.EventCatalogReloaded)
}
