package messaging

import (
	"encoding/json"
	"log"

	"github.com/Dashboard4-0/MS5-App-sub002/config"
	"github.com/Dashboard4-0/MS5-App-sub002/engine"
)

// Forwarder publishes fault and effectiveness events upstream. Events raised
// while the broker is unreachable are skipped, not queued; upstream consumers
// reconcile from the store.
type Forwarder struct {
	client *Client
	cfg    *config.MessagingConfig
	nodeID string
}

// NewForwarder creates a Forwarder using the given client.
func NewForwarder(client *Client, cfg *config.MessagingConfig, nodeID string) *Forwarder {
	return &Forwarder{client: client, cfg: cfg, nodeID: nodeID}
}

// AttachEngine wires fault and OEE events to upstream topics.
func (f *Forwarder) AttachEngine(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		var topic string
		switch evt.Type {
		case engine.EventFaultOpened, engine.EventFaultClosed:
			topic = f.cfg.FaultTopic
		case engine.EventOEEComputed:
			topic = f.cfg.OEETopic
		default:
			return
		}
		if !f.client.IsConnected() {
			return
		}
		env := NewEnvelope(evt.Type.String(), f.nodeID, evt.Payload)
		if err := f.client.PublishEnvelope(topic, env); err != nil {
			log.Printf("messaging: publish %s: %v", evt.Type, err)
		}
	}, engine.EventFaultOpened, engine.EventFaultClosed, engine.EventOEEComputed)
}

// ListenCommands subscribes to the plant command topic. reload is invoked for
// catalog_reload commands so upstream systems can push registry changes
// without waiting for the refresh interval.
func (f *Forwarder) ListenCommands(reload func() error) error {
	if f.cfg.CommandTopic == "" {
		return nil
	}
	return f.client.Subscribe(f.cfg.CommandTopic, func(payload []byte) {
		f.handleCommand(payload, reload)
	})
}

func (f *Forwarder) handleCommand(payload []byte, reload func() error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		log.Printf("messaging: bad command envelope: %v", err)
		return
	}
	switch env.MsgType {
	case "catalog_reload":
		if err := reload(); err != nil {
			log.Printf("messaging: catalog reload requested by %s failed: %v", env.NodeID, err)
			return
		}
		log.Printf("messaging: catalog reloaded on request from %s", env.NodeID)
	default:
		log.Printf("messaging: unknown command %q from %s", env.MsgType, env.NodeID)
	}
}
