package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Hub.QueueSize != 64 {
		t.Errorf("queue size = %d, want 64", cfg.Hub.QueueSize)
	}
	if cfg.OEE.ZeroPartsQuality != 1.0 {
		t.Errorf("zero parts quality = %v, want 1.0", cfg.OEE.ZeroPartsQuality)
	}
	if cfg.Web.Port != 8084 {
		t.Errorf("web port = %d, want 8084", cfg.Web.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ms5.yaml")
	doc := `
namespace: plant-b
store:
  driver: postgres
  retention_horizon: 720h
sources:
  - name: plc1
    base_url: http://10.0.0.5:8080
    poll_interval: 250ms
  - name: plc2
    base_url: http://10.0.0.6:8080
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Namespace != "plant-b" {
		t.Errorf("namespace = %q", cfg.Namespace)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Store.Driver)
	}
	if cfg.Store.RetentionHorizon != 720*time.Hour {
		t.Errorf("retention = %v", cfg.Store.RetentionHorizon)
	}
	// Untouched sections keep their defaults.
	if cfg.Store.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want default 5432", cfg.Store.Postgres.Port)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].PollInterval != 250*time.Millisecond {
		t.Errorf("plc1 poll interval = %v", cfg.Sources[0].PollInterval)
	}
}

func TestValidateFillsSourceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ms5.yaml")
	doc := `
sources:
  - name: plc1
    base_url: http://10.0.0.5:8080
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Sources[0]
	if s.PollInterval != time.Second {
		t.Errorf("poll interval = %v, want 1s", s.PollInterval)
	}
	if s.Timeout != 800*time.Millisecond {
		t.Errorf("timeout = %v, want 800ms", s.Timeout)
	}
	if s.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", s.MaxRetries)
	}
}

func TestValidateRejectsDuplicateSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ms5.yaml")
	doc := `
sources:
  - name: plc1
    base_url: http://a
  - name: plc1
    base_url: http://b
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate source name") {
		t.Errorf("err = %v, want duplicate source name", err)
	}
}

func TestValidateRejectsUnnamedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ms5.yaml")
	doc := `
sources:
  - base_url: http://a
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("source without a name should be rejected")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ms5.yaml")
	cfg := Defaults()
	cfg.Namespace = "plant-c"
	cfg.Sources = []SourceConfig{{Name: "plc1", BaseURL: "http://a", PollInterval: time.Second, Timeout: 500 * time.Millisecond, MaxRetries: 2}}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Namespace != "plant-c" {
		t.Errorf("namespace = %q", got.Namespace)
	}
	if len(got.Sources) != 1 || got.Sources[0].Name != "plc1" {
		t.Errorf("sources = %+v", got.Sources)
	}
}

func TestNodeID(t *testing.T) {
	cfg := Defaults()
	if got := cfg.NodeID(); got != "plant-a.ms5" {
		t.Errorf("derived node id = %q, want plant-a.ms5", got)
	}
	cfg.Messaging.NodeID = "edge-7"
	if got := cfg.NodeID(); got != "edge-7" {
		t.Errorf("explicit node id = %q, want edge-7", got)
	}
}
