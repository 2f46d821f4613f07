package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dashboard4-0/MS5-App-sub002/catalog"
	"github.com/Dashboard4-0/MS5-App-sub002/config"
)

// HTTPFetcher reads values from a source gateway's HTTP API. The gateway
// exposes GET {base}/values?addresses=a,b,c returning a JSON object mapping
// each address to its raw value.
type HTTPFetcher struct {
	baseURL string
	client  http.Client
}

// NewHTTPFetcher creates a fetcher for one gateway.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.Client{Timeout: timeout},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, addresses []string) (map[string]any, error) {
	u := f.baseURL + "/values?addresses=" + url.QueryEscape(strings.Join(addresses, ","))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	var values map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	return values, nil
}

// SourceSpec pairs a source config with its catalog view and an optional
// fetcher override (tests inject fakes here).
type SourceSpec struct {
	Config  config.SourceConfig
	Catalog *catalog.Catalog
	Fetcher Fetcher
}

// Manager owns one Poller per configured source.
type Manager struct {
	pollers map[string]*Poller
}

// NewManager builds pollers for all configured sources, each with its own
// HTTP fetcher.
func NewManager(sources []SourceSpec, emitter Emitter) *Manager {
	m := &Manager{pollers: make(map[string]*Poller, len(sources))}
	for _, s := range sources {
		fetcher := s.Fetcher
		if fetcher == nil {
			fetcher = NewHTTPFetcher(s.Config.BaseURL, s.Config.Timeout)
		}
		m.pollers[s.Config.Name] = New(s.Config, s.Catalog, fetcher, emitter)
	}
	return m
}

// Start starts all source loops.
func (m *Manager) Start() {
	for _, p := range m.pollers {
		p.Start()
	}
}

// Stop halts all source loops and waits for them.
func (m *Manager) Stop() {
	for _, p := range m.pollers {
		p.Stop()
	}
}

// Health returns health for every source.
func (m *Manager) Health() []Health {
	out := make([]Health, 0, len(m.pollers))
	for _, p := range m.pollers {
		out = append(out, p.Health())
	}
	return out
}
