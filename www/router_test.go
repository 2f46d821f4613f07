package www

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/config"
	"github.com/Dashboard4-0/MS5-App-sub002/engine"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
)

func testServer(t *testing.T) (*httptest.Server, *store.DB) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "api_test.db")

	db, err := store.Open(&cfg.Store)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	def := &catalog.MetricDefinition{EquipmentCode: "E1", Key: "temp", ValueType: catalog.TypeReal, Unit: "C"}
	if err := db.CreateMetricDefinition(def); err != nil {
		t.Fatalf("create definition: %v", err)
	}
	if err := db.CreateEquipment(&catalog.Equipment{
		Code: "E1", LineID: "L1", IdealCycleTime: 2,
		GoodCountKey: "good", TotalCountKey: "total", Enabled: true,
	}); err != nil {
		t.Fatalf("create equipment: %v", err)
	}
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := db.UpsertLatest(def, ts, store.RealValue(21.5)); err != nil {
		t.Fatalf("upsert latest: %v", err)
	}
	if err := db.AppendHistory(def, ts, store.RealValue(21.5)); err != nil {
		t.Fatalf("append history: %v", err)
	}

	eng := engine.New(engine.Config{AppConfig: cfg, DB: db})
	if err := eng.Start(); err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(eng.Stop)

	handler, stop := NewRouter(eng)
	t.Cleanup(stop)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, db
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestAPILatest(t *testing.T) {
	srv, _ := testServer(t)

	var rows []map[string]any
	if code := get(t, srv, "/api/latest?equipment=E1", &rows); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0]["key"] != "temp" {
		t.Errorf("row = %v", rows[0])
	}

	var errBody map[string]string
	if code := get(t, srv, "/api/latest", &errBody); code != http.StatusBadRequest {
		t.Errorf("missing equipment status = %d, want 400", code)
	}
	if errBody["error"] == "" {
		t.Error("error body missing")
	}
}

func TestAPIHistory(t *testing.T) {
	srv, _ := testServer(t)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	var rows []map[string]any
	path := "/api/history?equipment=E1&key=temp&start=" +
		strconvI64(start) + "&end=" + strconvI64(end)
	if code := get(t, srv, path, &rows); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}

	if code := get(t, srv, "/api/history?equipment=E1&key=nope", nil); code != http.StatusNotFound {
		t.Errorf("unknown metric status = %d, want 404", code)
	}
	if code := get(t, srv, "/api/history?equipment=E1", nil); code != http.StatusBadRequest {
		t.Errorf("missing key status = %d, want 400", code)
	}
}

func TestAPIInvertedTimeRange(t *testing.T) {
	srv, _ := testServer(t)
	path := "/api/history?equipment=E1&key=temp&start=2000&end=1000"
	if code := get(t, srv, path, nil); code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", code)
	}
}

func TestAPIEquipmentAndSources(t *testing.T) {
	srv, _ := testServer(t)

	var equipment []map[string]any
	if code := get(t, srv, "/api/equipment", &equipment); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(equipment) != 1 {
		t.Errorf("equipment = %d, want 1", len(equipment))
	}

	// No sources configured: an empty list, not null.
	var sources []any
	if code := get(t, srv, "/api/sources", &sources); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if sources == nil {
		t.Error("sources = null, want []")
	}
}

func TestAPIActiveFaults(t *testing.T) {
	srv, db := testServer(t)

	if err := db.CreateFaultBit(&catalog.FaultBit{EquipmentCode: "E1", BitIndex: 3, Name: "jam", Marker: catalog.MarkerInternal}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordFaultRising("E1", 3, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertFaultActive("E1", 3, true, time.Now()); err != nil {
		t.Fatal(err)
	}

	var rows []map[string]any
	if code := get(t, srv, "/api/faults/active?equipment=E1", &rows); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(rows) != 1 {
		t.Errorf("active faults = %d, want 1", len(rows))
	}
}

func TestAPIHealthCheck(t *testing.T) {
	srv, _ := testServer(t)

	var body map[string]any
	if code := get(t, srv, "/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["definitions"].(float64) != 1 {
		t.Errorf("definitions = %v, want 1", body["definitions"])
	}
	keys, ok := body["quarantined_keys"].([]any)
	if !ok {
		t.Fatalf("quarantined_keys missing or wrong type: %v", body["quarantined_keys"])
	}
	if len(keys) != 0 {
		t.Errorf("quarantined keys = %v, want none on a fresh store", keys)
	}
}

func strconvI64(v int64) string {
	return strconv.FormatInt(v, 10)
}
