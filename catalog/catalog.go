package catalog

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Loader supplies registry rows, normally backed by the store.
type Loader interface {
	ListMetricDefinitions() ([]*MetricDefinition, error)
	ListMetricBindings() ([]*MetricBinding, error)
	ListFaultBits() ([]*FaultBit, error)
	ListEquipment() ([]*Equipment, error)
}

// Snapshot is an immutable view of the metric registry. Lookups are safe for
// concurrent use; a new Snapshot replaces the old one wholesale on refresh.
type Snapshot struct {
	defsByID   map[int64]*MetricDefinition
	defsByKey  map[string]*MetricDefinition // equipment + "\x00" + key
	bySource   map[string][]BoundMetric
	byAddress  map[string]BoundMetric // source + "\x00" + address + bit suffix
	faultBits  map[string][]*FaultBit
	faultByBit map[string]*FaultBit // equipment + "\x00" + bit
	equipment  []*Equipment
	loadedAt   time.Time
}

func defKey(equipment, key string) string { return equipment + "\x00" + key }

func bitKey(equipment string, bit int) string {
	return fmt.Sprintf("%s\x00%d", equipment, bit)
}

// BuildSnapshot assembles a Snapshot from registry rows.
func BuildSnapshot(defs []*MetricDefinition, bindings []*MetricBinding, faults []*FaultBit, equipment []*Equipment) (*Snapshot, error) {
	s := &Snapshot{
		defsByID:   make(map[int64]*MetricDefinition, len(defs)),
		defsByKey:  make(map[string]*MetricDefinition, len(defs)),
		bySource:   make(map[string][]BoundMetric),
		byAddress:  make(map[string]BoundMetric, len(bindings)),
		faultBits:  make(map[string][]*FaultBit),
		faultByBit: make(map[string]*FaultBit, len(faults)),
		equipment:  equipment,
		loadedAt:   time.Now(),
	}
	for _, d := range defs {
		if !d.ValueType.Valid() {
			return nil, fmt.Errorf("definition %s/%s: unknown value type %q", d.EquipmentCode, d.Key, d.ValueType)
		}
		s.defsByID[d.ID] = d
		s.defsByKey[defKey(d.EquipmentCode, d.Key)] = d
	}
	bound := make(map[int64]bool, len(bindings))
	for _, b := range bindings {
		d, ok := s.defsByID[b.DefinitionID]
		if !ok {
			return nil, fmt.Errorf("binding %d references unknown definition %d", b.ID, b.DefinitionID)
		}
		if bound[b.DefinitionID] {
			return nil, fmt.Errorf("definition %s/%s has more than one active binding", d.EquipmentCode, d.Key)
		}
		bound[b.DefinitionID] = true
		bm := BoundMetric{Definition: d, Binding: b}
		s.bySource[b.SourceName] = append(s.bySource[b.SourceName], bm)
		s.byAddress[b.SourceName+"\x00"+b.Address+bitSuffix(b.BitIndex)] = bm
	}
	for _, f := range faults {
		s.faultBits[f.EquipmentCode] = append(s.faultBits[f.EquipmentCode], f)
		s.faultByBit[bitKey(f.EquipmentCode, f.BitIndex)] = f
	}
	return s, nil
}

func bitSuffix(bit *int) string {
	if bit == nil {
		return ""
	}
	return fmt.Sprintf("\x00%d", *bit)
}

// Definition looks up a definition by equipment code and metric key.
func (s *Snapshot) Definition(equipment, key string) (*MetricDefinition, bool) {
	d, ok := s.defsByKey[defKey(equipment, key)]
	return d, ok
}

// DefinitionByID looks up a definition by ID.
func (s *Snapshot) DefinitionByID(id int64) (*MetricDefinition, bool) {
	d, ok := s.defsByID[id]
	return d, ok
}

// SourceBindings returns all bound metrics for one source.
func (s *Snapshot) SourceBindings(source string) []BoundMetric {
	return s.bySource[source]
}

// FaultBit looks up the fault catalog entry for an equipment status bit.
func (s *Snapshot) FaultBit(equipment string, bit int) (*FaultBit, bool) {
	f, ok := s.faultByBit[bitKey(equipment, bit)]
	return f, ok
}

// FaultBits returns the fault catalog for one equipment.
func (s *Snapshot) FaultBits(equipment string) []*FaultBit {
	return s.faultBits[equipment]
}

// Equipment returns all registered equipment.
func (s *Snapshot) Equipment() []*Equipment {
	return s.equipment
}

// DefinitionCount returns the number of definitions in the snapshot.
func (s *Snapshot) DefinitionCount() int { return len(s.defsByID) }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Catalog holds the current registry snapshot. Reads are lock-cheap; Reload
// swaps the snapshot atomically so in-flight readers keep a consistent view.
type Catalog struct {
	mu     sync.RWMutex
	loader Loader
	snap   *Snapshot
}

// New creates a Catalog and performs the initial load.
func New(loader Loader) (*Catalog, error) {
	c := &Catalog{loader: loader}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns the current registry view.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Reload rebuilds the snapshot from the loader. On error the previous
// snapshot stays in place.
func (c *Catalog) Reload() error {
	defs, err := c.loader.ListMetricDefinitions()
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	bindings, err := c.loader.ListMetricBindings()
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	faults, err := c.loader.ListFaultBits()
	if err != nil {
		return fmt.Errorf("load fault bits: %w", err)
	}
	equipment, err := c.loader.ListEquipment()
	if err != nil {
		return fmt.Errorf("load equipment: %w", err)
	}
	snap, err := BuildSnapshot(defs, bindings, faults, equipment)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}

// RefreshEmitter is notified after each successful reload.
type RefreshEmitter interface {
	EmitCatalogReloaded(definitions, bindings int)
}

// Refresher reloads the catalog on a fixed interval.
type Refresher struct {
	catalog  *Catalog
	emitter  RefreshEmitter
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRefresher creates a Refresher. emitter may be nil.
func NewRefresher(c *Catalog, emitter RefreshEmitter, interval time.Duration) *Refresher {
	return &Refresher{
		catalog:  c,
		emitter:  emitter,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the refresh loop.
func (r *Refresher) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop halts the refresh loop. Safe to call more than once, concurrently.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Refresher) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.catalog.Reload(); err != nil {
				log.Printf("catalog: reload: %v", err)
				continue
			}
			if r.emitter != nil {
				snap := r.catalog.Snapshot()
				r.emitter.EmitCatalogReloaded(snap.DefinitionCount(), len(snap.byAddress))
			}
		}
	}
}
