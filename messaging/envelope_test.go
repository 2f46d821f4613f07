package messaging

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope("fault_opened", "plant-a.ms5", map[string]any{"equipment": "E1", "bit": 3})
	if env.MsgID == "" {
		t.Fatal("envelope missing message id")
	}
	if env.Timestamp.IsZero() {
		t.Fatal("envelope missing timestamp")
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got Envelope
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.MsgType != "fault_opened" || got.NodeID != "plant-a.ms5" || got.MsgID != env.MsgID {
		t.Errorf("envelope = %+v", got)
	}
	payload, ok := got.Payload.(map[string]any)
	if !ok || payload["equipment"] != "E1" {
		t.Errorf("payload = %v", got.Payload)
	}
	if got.Timestamp.Sub(env.Timestamp) > time.Second {
		t.Errorf("timestamp drifted: %v vs %v", got.Timestamp, env.Timestamp)
	}
}

func TestEnvelopeIDsAreUnique(t *testing.T) {
	a := NewEnvelope("oee", "n1", nil)
	b := NewEnvelope("oee", "n1", nil)
	if a.MsgID == b.MsgID {
		t.Errorf("two envelopes share message id %s", a.MsgID)
	}
}
