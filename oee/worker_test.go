package oee

import (
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/config"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.StoreConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type mockOEEEmitter struct {
	rows []store.OEERow
}

func (m *mockOEEEmitter) EmitOEEComputed(row store.OEERow) {
	m.rows = append(m.rows, row)
}

func seedCounter(t *testing.T, db *store.DB, equipment, key string) *catalog.MetricDefinition {
	t.Helper()
	d := &catalog.MetricDefinition{EquipmentCode: equipment, Key: key, ValueType: catalog.TypeInt}
	if err := db.CreateMetricDefinition(d); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestWorkerCycle(t *testing.T) {
	db := testDB(t)

	if err := db.CreateEquipment(&catalog.Equipment{
		Code: "E1", LineID: "L1", IdealCycleTime: 2,
		GoodCountKey: "good", TotalCountKey: "total", Enabled: true,
	}); err != nil {
		t.Fatal(err)
	}
	good := seedCounter(t, db, "E1", "good")
	total := seedCounter(t, db, "E1", "total")

	now := time.Unix(100_000, 0)
	start := now.Add(-time.Hour)

	// Counters advance by 1400 good / 1500 total over the window.
	db.AppendHistory(good, start.Add(time.Second), store.IntValue(10_000))
	db.AppendHistory(good, now.Add(-time.Second), store.IntValue(11_400))
	db.AppendHistory(total, start.Add(time.Second), store.IntValue(20_000))
	db.AppendHistory(total, now.Add(-time.Second), store.IntValue(21_500))

	// 600s of downtime inside the window.
	db.RecordFaultRising("E1", 3, start.Add(10*time.Minute))
	db.RecordFaultFalling("E1", 3, start.Add(20*time.Minute))

	cat, err := catalog.New(db)
	if err != nil {
		t.Fatal(err)
	}

	em := &mockOEEEmitter{}
	w := NewWorker(db, cat, NewCalculator(1), em, time.Hour)
	w.Cycle(now)

	if len(em.rows) != 1 {
		t.Fatalf("emitted = %d, want 1", len(em.rows))
	}
	r := em.rows[0]
	if r.GoodParts != 1400 || r.TotalParts != 1500 {
		t.Errorf("parts = %d/%d, want 1400/1500", r.GoodParts, r.TotalParts)
	}
	if math.Abs(r.Availability-0.833) > 0.001 {
		t.Errorf("availability = %v, want ~0.833", r.Availability)
	}
	if math.Abs(r.OEE-0.778) > 0.001 {
		t.Errorf("oee = %v, want ~0.778", r.OEE)
	}
	if r.LineID != "L1" {
		t.Errorf("line = %q", r.LineID)
	}

	// The row is persisted and queryable by line.
	rows, err := db.OEEForLine("L1", start, now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].DowntimeS != 600 {
		t.Errorf("stored = %+v", rows)
	}
}

func TestWorkerCounterReset(t *testing.T) {
	db := testDB(t)

	if err := db.CreateEquipment(&catalog.Equipment{
		Code: "E1", LineID: "L1", IdealCycleTime: 2,
		GoodCountKey: "good", TotalCountKey: "total", Enabled: true,
	}); err != nil {
		t.Fatal(err)
	}
	good := seedCounter(t, db, "E1", "good")
	seedCounter(t, db, "E1", "total")

	now := time.Unix(100_000, 0)
	start := now.Add(-time.Hour)

	// Counter wrapped: 9990 then 25 after a reset. The delta is the final
	// reading, not a negative number.
	db.AppendHistory(good, start.Add(time.Second), store.IntValue(9990))
	db.AppendHistory(good, now.Add(-time.Second), store.IntValue(25))

	cat, err := catalog.New(db)
	if err != nil {
		t.Fatal(err)
	}
	em := &mockOEEEmitter{}
	w := NewWorker(db, cat, NewCalculator(1), em, time.Hour)
	w.Cycle(now)

	if len(em.rows) != 1 {
		t.Fatalf("emitted = %d, want 1", len(em.rows))
	}
	if em.rows[0].GoodParts != 25 {
		t.Errorf("good parts = %d, want 25", em.rows[0].GoodParts)
	}
}

func TestWorkerSkipsDisabledEquipment(t *testing.T) {
	db := testDB(t)
	db.CreateEquipment(&catalog.Equipment{Code: "E1", LineID: "L1", Enabled: false})

	cat, err := catalog.New(db)
	if err != nil {
		t.Fatal(err)
	}
	em := &mockOEEEmitter{}
	w := NewWorker(db, cat, NewCalculator(1), em, time.Hour)
	w.Cycle(time.Now())

	if len(em.rows) != 0 {
		t.Errorf("emitted = %d, want 0", len(em.rows))
	}
}

func TestWorkerConcurrentStop(t *testing.T) {
	db := testDB(t)
	cat, err := catalog.New(db)
	if err != nil {
		t.Fatal(err)
	}

	w := NewWorker(db, cat, NewCalculator(1), &mockOEEEmitter{}, time.Minute)
	w.Start()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
