package poller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/config"
)

// RawSample is one untyped value read from a source this tick.
type RawSample struct {
	Source  string
	Address string
	Value   any
	TS      time.Time
}

// Emitter receives poll results and source health transitions.
type Emitter interface {
	EmitBatch(source string, samples []RawSample)
	EmitSourceDown(source string, err error)
	EmitSourceUp(source string)
}

// Fetcher reads raw values for a set of addresses from one source.
type Fetcher interface {
	Fetch(ctx context.Context, addresses []string) (map[string]any, error)
}

// Health is a source's externally visible state.
type Health struct {
	Source    string    `json:"source"`
	Degraded  bool      `json:"degraded"`
	LastError string    `json:"last_error,omitempty"`
	LastPoll  time.Time `json:"last_poll"`
	Failures  int       `json:"consecutive_failures"`
}

// Poller runs the polling loop for one source. Each source loop is fully
// independent: a timeout or failure here never blocks another source.
type Poller struct {
	cfg     config.SourceConfig
	cat     *catalog.Catalog
	fetcher Fetcher
	emitter Emitter

	mu       sync.Mutex
	degraded bool
	failures int
	lastErr  error
	lastPoll time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a poller for one source.
func New(cfg config.SourceConfig, cat *catalog.Catalog, fetcher Fetcher, emitter Emitter) *Poller {
	return &Poller{
		cfg:      cfg,
		cat:      cat,
		fetcher:  fetcher,
		emitter:  emitter,
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop halts the loop, abandoning any in-flight cycle's retries. Safe to
// call more than once, concurrently.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Health returns the current health snapshot for this source.
func (p *Poller) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := Health{
		Source:   p.cfg.Name,
		Degraded: p.degraded,
		LastPoll: p.lastPoll,
		Failures: p.failures,
	}
	if p.lastErr != nil {
		h.LastError = p.lastErr.Error()
	}
	return h
}

func (p *Poller) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	// Immediate first poll so startup isn't one interval behind.
	p.tick()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	snap := p.cat.Snapshot()
	bound := snap.SourceBindings(p.cfg.Name)
	if len(bound) == 0 {
		return
	}
	addresses := uniqueAddresses(bound)

	values, err := p.fetchWithRetry(addresses)
	now := time.Now()

	p.mu.Lock()
	p.lastPoll = now
	if err != nil {
		p.failures++
		p.lastErr = err
		wasDegraded := p.degraded
		if !p.degraded && p.failures >= p.cfg.MaxRetries {
			p.degraded = true
		}
		becameDegraded := p.degraded && !wasDegraded
		p.mu.Unlock()
		if becameDegraded {
			log.Printf("poller: source %s degraded after %d consecutive failures: %v", p.cfg.Name, p.cfg.MaxRetries, err)
			p.emitter.EmitSourceDown(p.cfg.Name, err)
		}
		return
	}
	p.failures = 0
	p.lastErr = nil
	wasDegraded := p.degraded
	p.degraded = false
	p.mu.Unlock()

	if wasDegraded {
		log.Printf("poller: source %s recovered", p.cfg.Name)
		p.emitter.EmitSourceUp(p.cfg.Name)
	}

	samples := make([]RawSample, 0, len(values))
	for addr, v := range values {
		samples = append(samples, RawSample{Source: p.cfg.Name, Address: addr, Value: v, TS: now})
	}
	if len(samples) > 0 {
		p.emitter.EmitBatch(p.cfg.Name, samples)
	}
}

// fetchWithRetry attempts the fetch with exponential backoff inside one tick.
// The whole retry budget is capped at one poll interval so a bad source
// cannot smear across ticks; intervals elapsed during retries are skipped.
func (p *Poller) fetchWithRetry(addresses []string) (map[string]any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = p.cfg.PollInterval
	b.MaxElapsedTime = p.cfg.PollInterval

	var values map[string]any
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()
		v, err := p.fetcher.Fetch(ctx, addresses)
		if err != nil {
			return err
		}
		values = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("poller: source %s: %v (retrying in %s)", p.cfg.Name, err, wait.Round(time.Millisecond))
	}
	retries := uint64(p.cfg.MaxRetries)
	if retries == 0 {
		retries = 3
	}
	if err := backoff.RetryNotify(op, stoppable{backoff.WithMaxRetries(b, retries), p.stopChan}, notify); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.cfg.Name, err)
	}
	return values, nil
}

// stoppable aborts a backoff sequence when the poller is stopping.
type stoppable struct {
	backoff.BackOff
	stop <-chan struct{}
}

func (s stoppable) NextBackOff() time.Duration {
	select {
	case <-s.stop:
		return backoff.Stop
	default:
		return s.BackOff.NextBackOff()
	}
}

func uniqueAddresses(bound []catalog.BoundMetric) []string {
	seen := make(map[string]bool, len(bound))
	out := make([]string, 0, len(bound))
	for _, bm := range bound {
		addr := bm.Binding.Address
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
