package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/config"
)

type fakeLoader struct {
	defs     []*catalog.MetricDefinition
	bindings []*catalog.MetricBinding
}

func (l *fakeLoader) ListMetricDefinitions() ([]*catalog.MetricDefinition, error) {
	return l.defs, nil
}
func (l *fakeLoader) ListMetricBindings() ([]*catalog.MetricBinding, error) { return l.bindings, nil }
func (l *fakeLoader) ListFaultBits() ([]*catalog.FaultBit, error)          { return nil, nil }
func (l *fakeLoader) ListEquipment() ([]*catalog.Equipment, error)         { return nil, nil }

func testCatalog(t *testing.T, source string, addresses ...string) *catalog.Catalog {
	t.Helper()
	l := &fakeLoader{}
	for i, addr := range addresses {
		id := int64(i + 1)
		l.defs = append(l.defs, &catalog.MetricDefinition{
			ID: id, EquipmentCode: "E1", Key: addr, ValueType: catalog.TypeReal,
		})
		l.bindings = append(l.bindings, &catalog.MetricBinding{
			ID: id, DefinitionID: id, SourceName: source, Address: addr,
		})
	}
	cat, err := catalog.New(l)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

// flakyFetcher fails while err is set and answers every address with 1.0
// otherwise. Each Fetch call is counted, retries included.
type flakyFetcher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *flakyFetcher) Fetch(ctx context.Context, addresses []string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]any, len(addresses))
	for _, a := range addresses {
		out[a] = 1.0
	}
	return out, nil
}

func (f *flakyFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *flakyFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failNFetcher fails the first n calls and succeeds after.
type failNFetcher struct {
	mu    sync.Mutex
	n     int
	calls int
}

func (f *failNFetcher) Fetch(ctx context.Context, addresses []string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.n {
		return nil, errors.New("transient fault")
	}
	out := make(map[string]any, len(addresses))
	for _, a := range addresses {
		out[a] = 1.0
	}
	return out, nil
}

type mockEmitter struct {
	mu      sync.Mutex
	batches [][]RawSample
	downs   int
	ups     int
}

func (m *mockEmitter) EmitBatch(source string, samples []RawSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, samples)
}

func (m *mockEmitter) EmitSourceDown(source string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downs++
}

func (m *mockEmitter) EmitSourceUp(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ups++
}

func (m *mockEmitter) counts() (batches, downs, ups int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches), m.downs, m.ups
}

func testSourceConfig(name string) config.SourceConfig {
	return config.SourceConfig{
		Name:         name,
		BaseURL:      "http://unit-test.invalid",
		PollInterval: time.Second,
		Timeout:      100 * time.Millisecond,
		MaxRetries:   2,
	}
}

func TestTickEmitsBatch(t *testing.T) {
	cat := testCatalog(t, "plc1", "D100", "D101")
	fetcher := &flakyFetcher{}
	em := &mockEmitter{}
	p := New(testSourceConfig("plc1"), cat, fetcher, em)

	p.tick()

	batches, downs, ups := em.counts()
	if batches != 1 || downs != 0 || ups != 0 {
		t.Fatalf("batches=%d downs=%d ups=%d, want 1/0/0", batches, downs, ups)
	}
	if got := len(em.batches[0]); got != 2 {
		t.Errorf("samples = %d, want 2", got)
	}
	for _, s := range em.batches[0] {
		if s.Source != "plc1" {
			t.Errorf("sample source = %q", s.Source)
		}
		if s.Value != 1.0 {
			t.Errorf("sample %s value = %v", s.Address, s.Value)
		}
	}
	if h := p.Health(); h.Degraded || h.Failures != 0 {
		t.Errorf("health after success = %+v", h)
	}
}

func TestTickSkipsSourceWithNoBindings(t *testing.T) {
	cat := testCatalog(t, "plc1", "D100")
	fetcher := &flakyFetcher{}
	em := &mockEmitter{}
	p := New(testSourceConfig("other"), cat, fetcher, em)

	p.tick()

	if fetcher.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.callCount())
	}
	if batches, _, _ := em.counts(); batches != 0 {
		t.Errorf("batches = %d, want 0", batches)
	}
}

func TestRetryWithinTick(t *testing.T) {
	cat := testCatalog(t, "plc1", "D100")
	fetcher := &failNFetcher{n: 1}
	em := &mockEmitter{}
	p := New(testSourceConfig("plc1"), cat, fetcher, em)

	p.tick()

	batches, downs, _ := em.counts()
	if batches != 1 || downs != 0 {
		t.Errorf("batches=%d downs=%d, transient error should be absorbed by retry", batches, downs)
	}
}

func TestRetryBudgetBoundedByInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff waits")
	}
	cat := testCatalog(t, "plc1", "D100")
	fetcher := &flakyFetcher{err: errors.New("down")}
	em := &mockEmitter{}
	cfg := testSourceConfig("plc1")
	cfg.MaxRetries = 50
	p := New(cfg, cat, fetcher, em)

	start := time.Now()
	p.tick()
	elapsed := time.Since(start)

	// A failing tick gives up after about one poll interval no matter how
	// large the retry count is, so it cannot smear across later ticks.
	if elapsed > 3*cfg.PollInterval {
		t.Errorf("failed tick took %v, want bounded near one interval", elapsed)
	}
	if n := fetcher.callCount(); n > 4 {
		t.Errorf("fetch attempts = %d, budget should cut retries off", n)
	}
}

func TestDegradeAfterMaxRetries(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff waits")
	}
	cat := testCatalog(t, "plc1", "D100")
	fetcher := &flakyFetcher{err: errors.New("connection refused")}
	em := &mockEmitter{}
	cfg := testSourceConfig("plc1")
	p := New(cfg, cat, fetcher, em)

	// Each failed tick exhausts its retry budget and counts as one failure.
	p.tick()
	if _, downs, _ := em.counts(); downs != 0 {
		t.Fatal("degraded after a single failed tick")
	}
	p.tick()

	_, downs, ups := em.counts()
	if downs != 1 || ups != 0 {
		t.Fatalf("downs=%d ups=%d, want 1/0", downs, ups)
	}
	h := p.Health()
	if !h.Degraded || h.Failures != cfg.MaxRetries || h.LastError == "" {
		t.Errorf("health = %+v", h)
	}

	// Staying down emits no further transitions.
	p.tick()
	if _, downs, _ := em.counts(); downs != 1 {
		t.Errorf("downs = %d, want still 1", downs)
	}
}

func TestRecoveryEmitsSourceUp(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff waits")
	}
	cat := testCatalog(t, "plc1", "D100")
	fetcher := &flakyFetcher{err: errors.New("timeout")}
	em := &mockEmitter{}
	p := New(testSourceConfig("plc1"), cat, fetcher, em)

	p.tick()
	p.tick()
	fetcher.setErr(nil)
	p.tick()

	batches, downs, ups := em.counts()
	if downs != 1 || ups != 1 {
		t.Fatalf("downs=%d ups=%d, want 1/1", downs, ups)
	}
	if batches != 1 {
		t.Errorf("batches = %d, want 1", batches)
	}
	h := p.Health()
	if h.Degraded || h.Failures != 0 || h.LastError != "" {
		t.Errorf("health after recovery = %+v", h)
	}
}

func TestSourcesFailIndependently(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff waits")
	}
	catA := testCatalog(t, "plc1", "D100")
	catB := testCatalog(t, "plc2", "D200")

	em := &mockEmitter{}
	bad := New(testSourceConfig("plc1"), catA, &flakyFetcher{err: errors.New("down")}, em)
	good := New(testSourceConfig("plc2"), catB, &flakyFetcher{}, em)

	bad.tick()
	bad.tick()
	good.tick()

	batches, downs, _ := em.counts()
	if downs != 1 {
		t.Errorf("downs = %d, want 1", downs)
	}
	if batches != 1 {
		t.Fatalf("batches = %d, want 1 from the healthy source", batches)
	}
	if em.batches[0][0].Source != "plc2" {
		t.Errorf("batch source = %q, want plc2", em.batches[0][0].Source)
	}
}

func TestStartStop(t *testing.T) {
	cat := testCatalog(t, "plc1", "D100")
	fetcher := &flakyFetcher{}
	em := &mockEmitter{}
	p := New(testSourceConfig("plc1"), cat, fetcher, em)

	p.Start()
	time.Sleep(50 * time.Millisecond)

	// Concurrent Stop calls must not panic on a double close.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()

	if batches, _, _ := em.counts(); batches == 0 {
		t.Error("no batches emitted while running")
	}
}
