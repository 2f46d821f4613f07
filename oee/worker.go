package oee

import (
	"log"
	"sync"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

// Emitter receives completed calculations.
type Emitter interface {
	EmitOEEComputed(row store.OEERow)
}

// Worker computes effectiveness figures for every registered equipment on a
// fixed cycle. It is a pure read-then-write step over accumulated history
// and fault events; raw telemetry is never mutated.
type Worker struct {
	db       *store.DB
	cat      *catalog.Catalog
	calc     *Calculator
	emitter  Emitter
	interval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a calculation worker.
func NewWorker(db *store.DB, cat *catalog.Catalog, calc *Calculator, emitter Emitter, interval time.Duration) *Worker {
	return &Worker{
		db:       db,
		cat:      cat,
		calc:     calc,
		emitter:  emitter,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the calculation loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop halts the loop and waits for an in-flight cycle. Safe to call more
// than once, concurrently.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.Cycle(time.Now())
		}
	}
}

// Cycle computes figures for the window ending at now for every enabled
// equipment. Exported so tests and operators can trigger a cycle directly.
func (w *Worker) Cycle(now time.Time) {
	snap := w.cat.Snapshot()
	start := now.Add(-w.interval)

	for _, eq := range snap.Equipment() {
		if !eq.Enabled {
			continue
		}
		row, warnings, err := w.computeEquipment(snap, eq, start, now)
		if err != nil {
			log.Printf("oee: %s: %v", eq.Code, err)
			continue
		}
		for _, warn := range warnings {
			log.Printf("oee: %s: %s", eq.Code, warn)
		}
		if err := w.db.InsertOEE(&row); err != nil {
			log.Printf("oee: insert %s: %v", eq.Code, err)
			continue
		}
		w.emitter.EmitOEEComputed(row)
	}
}

func (w *Worker) computeEquipment(snap *catalog.Snapshot, eq *catalog.Equipment, start, end time.Time) (store.OEERow, []string, error) {
	downtime, err := w.db.FaultDowntime(eq.Code, start, end, "")
	if err != nil {
		return store.OEERow{}, nil, err
	}

	good := w.counterDelta(snap, eq.Code, eq.GoodCountKey, start, end)
	total := w.counterDelta(snap, eq.Code, eq.TotalCountKey, start, end)

	in := Inputs{
		PlannedTimeS:   end.Sub(start).Seconds(),
		DowntimeS:      downtime.Seconds(),
		GoodParts:      good,
		TotalParts:     total,
		IdealCycleTime: eq.IdealCycleTime,
	}
	res := w.calc.Compute(in)

	return store.OEERow{
		LineID:        eq.LineID,
		EquipmentCode: eq.Code,
		TS:            end,
		Availability:  res.Availability,
		Performance:   res.Performance,
		Quality:       res.Quality,
		OEE:           res.OEE,
		PlannedTimeS:  in.PlannedTimeS,
		RuntimeS:      res.RuntimeS,
		DowntimeS:     in.DowntimeS,
		GoodParts:     good,
		TotalParts:    total,
		Informational: res.Informational,
	}, res.Warnings, nil
}

// counterDelta differences a monotonic counter over the window. A counter
// that went backwards is treated as reset: the window contributes the final
// reading.
func (w *Worker) counterDelta(snap *catalog.Snapshot, equipment, key string, start, end time.Time) int64 {
	if key == "" {
		return 0
	}
	def, ok := snap.Definition(equipment, key)
	if !ok {
		return 0
	}
	first, last, ok, err := w.db.CounterWindow(def.ID, start, end)
	if err != nil || !ok {
		return 0
	}
	if last < first {
		return last
	}
	return last - first
}
