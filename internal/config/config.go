package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	HTTP struct {
		Port            int `koanf:"port"`
		ReadTimeoutSec  int `koanf:"read_timeout_sec"`
		WriteTimeoutSec int `koanf:"write_timeout_sec"`
		ShutdownSec     int `koanf:"shutdown_timeout_sec"`
	} `koanf:"http"`
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
	Mongo struct {
		URI        string `koanf:"uri"`
		Database   string `koanf:"database"`
		Collection string `koanf:"collection"`
		TimeoutMs  int    `koanf:"timeout_ms"`
	} `koanf:"mongo"`
	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   struct {
			Name string `koanf:"name"`
		} `koanf:"topic"`
		ConsumerGroup string `koanf:"consumer_group"`
		Retry         struct {
			Max     int `koanf:"max"`
			Backoff int `koanf:"backoff"`
		} `koanf:"retry"`
	} `koanf:"kafka"`
	Opensearch struct {
		URLs       []string `koanf:"urls"`
		Username   string   `koanf:"username"`
		Password   string   `koanf:"password"`
		MaxRetries int      `koanf:"max_retries"`
		TimeoutMs  int      `koanf:"timeout_ms"`
		Index      struct {
			Name     string `koanf:"name"`
			Shards   int    `koanf:"shards"`
			Replicas int    `koanf:"replicas"`
			BuffSize int    `koanf:"buff_size"`
			Refresh  string `koanf:"refresh"`
		} `koanf:"index"`
		Suggest struct {
			CaseSensitive bool `koanf:"case_sensitive"`
		} `koanf:"suggest"`
	} `koanf:"opensearch"`
}

// Load reads the YAML file at path. Missing keys fall back to defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error loading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// KafkaEnabled reports whether drift events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic.Name != ""
}

func (c *Config) applyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5001
	}
	if c.HTTP.ReadTimeoutSec == 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec == 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec == 0 {
		c.HTTP.ShutdownSec = 15
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "restaurantDB"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "restaurants"
	}
	if c.Mongo.TimeoutMs == 0 {
		c.Mongo.TimeoutMs = 5000
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "restaurant-index-repair"
	}
	if c.Opensearch.TimeoutMs == 0 {
		c.Opensearch.TimeoutMs = 3000
	}
	if c.Opensearch.Index.Name == "" {
		c.Opensearch.Index.Name = "restaurants"
	}
	if c.Opensearch.Index.Shards == 0 {
		c.Opensearch.Index.Shards = 1
	}
	if c.Opensearch.Index.BuffSize == 0 {
		c.Opensearch.Index.BuffSize = 500
	}
	if c.Opensearch.Index.Refresh == "" {
		c.Opensearch.Index.Refresh = "false"
	}
}

func (c *Config) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if len(c.Opensearch.URLs) == 0 {
		return fmt.Errorf("opensearch.urls is required")
	}
	switch c.Opensearch.Index.Refresh {
	case "true", "false", "wait_for":
	default:
		return fmt.Errorf("opensearch.index.refresh must be one of true, false, wait_for: got %q", c.Opensearch.Index.Refresh)
	}
	return nil
}
