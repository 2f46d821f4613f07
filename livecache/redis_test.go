package livecache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dashboard4-0/MS5-App-sub002/engine"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

func TestKeyScheme(t *testing.T) {
	if got := latestKey("E1", "temp"); got != "ms5:latest:E1:temp" {
		t.Errorf("latestKey = %q", got)
	}
	if got := faultSetKey("E1"); got != "ms5:fault:E1" {
		t.Errorf("faultSetKey = %q", got)
	}
}

func TestRedisOutageIsTolerated(t *testing.T) {
	// Nothing listens on this address; every write fails with a dial error.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	m := NewMirror(client)

	eng := engine.New(engine.Config{})
	m.AttachEngine(eng)

	// Mirrored events are logged and dropped, never fatal to the pipeline.
	eng.Events.Emit(engine.Event{Type: engine.EventSampleNormalized, Payload: engine.SampleEvent{
		DefinitionID: 1, Equipment: "E1", Key: "temp",
		Value: store.RealValue(21.5), TS: time.Now(),
	}})
	eng.Events.Emit(engine.Event{Type: engine.EventFaultOpened, Payload: engine.FaultOpenedEvent{
		Equipment: "E1", Bit: 3, Name: "jam",
	}})
	eng.Events.Emit(engine.Event{Type: engine.EventFaultClosed, Payload: engine.FaultClosedEvent{
		Equipment: "E1", Bit: 3, Name: "jam",
	}})
}
