package livecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dashboard4-0/MS5-App-sub002/engine"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// Mirror keeps the latest metric snapshots and active fault sets in Redis
// for external dashboards. It is a write-through cache fed from engine
// events; a Redis outage is logged and tolerated, never fatal.
type Mirror struct {
	client *redis.Client
}

// NewMirror creates a Mirror backed by the given client.
func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

func latestKey(equipment, key string) string {
	return fmt.Sprintf("ms5:latest:%s:%s", equipment, key)
}

func faultSetKey(equipment string) string {
	return fmt.Sprintf("ms5:fault:%s", equipment)
}

// SetLatest writes one metric snapshot.
func (m *Mirror) SetLatest(ctx context.Context, equipment, key string, v store.Value, ts time.Time) error {
	data, err := json.Marshal(map[string]any{"value": v, "ts": ts})
	if err != nil {
		return err
	}
	return m.client.Set(ctx, latestKey(equipment, key), data, 0).Err()
}

// GetLatest reads one metric snapshot. Returns nil if absent.
func (m *Mirror) GetLatest(ctx context.Context, equipment, key string) (json.RawMessage, error) {
	data, err := m.client.Get(ctx, latestKey(equipment, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// FaultOpened adds a bit to the equipment's active fault set.
func (m *Mirror) FaultOpened(ctx context.Context, equipment string, bit int, name string) error {
	pipe := m.client.Pipeline()
	pipe.SAdd(ctx, faultSetKey(equipment), bit)
	pipe.HSet(ctx, faultSetKey(equipment)+":names", strconv.Itoa(bit), name)
	_, err := pipe.Exec(ctx)
	return err
}

// FaultClosed removes a bit from the equipment's active fault set.
func (m *Mirror) FaultClosed(ctx context.Context, equipment string, bit int) error {
	pipe := m.client.Pipeline()
	pipe.SRem(ctx, faultSetKey(equipment), bit)
	pipe.HDel(ctx, faultSetKey(equipment)+":names", strconv.Itoa(bit))
	_, err := pipe.Exec(ctx)
	return err
}

// ActiveFaults reads the active fault bits for one equipment.
func (m *Mirror) ActiveFaults(ctx context.Context, equipment string) ([]int, error) {
	members, err := m.client.SMembers(ctx, faultSetKey(equipment)).Result()
	if err != nil {
		return nil, err
	}
	bits := make([]int, 0, len(members))
	for _, s := range members {
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		bits = append(bits, n)
	}
	return bits, nil
}

// AttachEngine mirrors sample and fault events into Redis.
func (m *Mirror) AttachEngine(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var err error
		switch p := evt.Payload.(type) {
		case engine.SampleEvent:
			err = m.SetLatest(ctx, p.Equipment, p.Key, p.Value, p.TS)
		case engine.FaultOpenedEvent:
			err = m.FaultOpened(ctx, p.Equipment, p.Bit, p.Name)
		case engine.FaultClosedEvent:
			err = m.FaultClosed(ctx, p.Equipment, p.Bit)
		}
		if err != nil {
			log.Printf("livecache: %v", err)
		}
	}, engine.EventSampleNormalized, engine.EventFaultOpened, engine.EventFaultClosed)
}
