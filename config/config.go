package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	Namespace string `yaml:"namespace"`
	PlantID   string `yaml:"plant_id"`

	Sources   []SourceConfig  `yaml:"sources"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Store     StoreConfig     `yaml:"store"`
	OEE       OEEConfig       `yaml:"oee"`
	Hub       HubConfig       `yaml:"hub"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Redis     RedisConfig     `yaml:"redis"`
}

// SourceConfig defines one polled telemetry source (a controller gateway).
type SourceConfig struct {
	Name         string        `yaml:"name"`
	BaseURL      string        `yaml:"base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// CatalogConfig defines metric registry refresh behavior.
type CatalogConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// StoreConfig defines the time-series store backend and maintenance windows.
type StoreConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`

	RetentionHorizon time.Duration `yaml:"retention_horizon"`
	CompressionAge   time.Duration `yaml:"compression_age"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	WriteRetries     int           `yaml:"write_retries"`
}

// SQLiteConfig defines the SQLite database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig defines the PostgreSQL connection.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// OEEConfig defines the aggregate calculation cycle.
type OEEConfig struct {
	CycleInterval    time.Duration `yaml:"cycle_interval"`
	ZeroPartsQuality float64       `yaml:"zero_parts_quality"`
}

// HubConfig defines live-subscriber delivery limits.
type HubConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// WebConfig defines the HTTP server settings.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MessagingConfig defines the upstream event broker.
type MessagingConfig struct {
	Enabled      bool        `yaml:"enabled"`
	Backend      string      `yaml:"backend"` // "mqtt", "kafka" or "nats"
	MQTT         MQTTConfig  `yaml:"mqtt"`
	Kafka        KafkaConfig `yaml:"kafka"`
	NATS         NATSConfig  `yaml:"nats"`
	FaultTopic   string      `yaml:"fault_topic"`
	OEETopic     string      `yaml:"oee_topic"`
	CommandTopic string      `yaml:"command_topic"`
	NodeID       string      `yaml:"node_id"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// NATSConfig defines NATS server settings.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig defines the optional live snapshot mirror.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Namespace: "plant-a",
		PlantID:   "ms5",
		Catalog: CatalogConfig{
			RefreshInterval: time.Minute,
		},
		Store: StoreConfig{
			Driver:           "sqlite",
			SQLite:           SQLiteConfig{Path: "ms5.db"},
			Postgres:         PostgresConfig{Host: "localhost", Port: 5432, Database: "ms5", User: "ms5", SSLMode: "disable"},
			RetentionHorizon: 90 * 24 * time.Hour,
			CompressionAge:   7 * 24 * time.Hour,
			SweepInterval:    time.Hour,
			WriteRetries:     3,
		},
		OEE: OEEConfig{
			CycleInterval:    time.Minute,
			ZeroPartsQuality: 1.0,
		},
		Hub: HubConfig{
			QueueSize: 64,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8084,
		},
		Messaging: MessagingConfig{
			Backend:      "mqtt",
			FaultTopic:   "ms5/faults",
			OEETopic:     "ms5/oee",
			CommandTopic: "ms5/commands",
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
			NATS: NATSConfig{URL: "nats://localhost:4222"},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		if s.PollInterval <= 0 {
			s.PollInterval = time.Second
		}
		if s.Timeout <= 0 {
			s.Timeout = s.PollInterval * 4 / 5
		}
		if s.MaxRetries <= 0 {
			s.MaxRetries = 3
		}
	}
	return nil
}

// NodeID returns the configured messaging node ID, or derives one.
func (c *Config) NodeID() string {
	if c.Messaging.NodeID != "" {
		return c.Messaging.NodeID
	}
	return c.Namespace + "." + c.PlantID
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
