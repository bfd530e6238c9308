// Package config loads matchex's YAML configuration. Grounded on
// original_source/src/config.rs's serde_yaml Config{kafka_config,
// mysql_config, postgresql_config}, translated to gopkg.in/yaml.v3 with
// a go:embed default so the binary runs with sane defaults when no file
// is present.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrNoDatabase is returned when neither or both of postgres_config and
// mysql_config are present; exactly one symbol-catalog backend is required.
var ErrNoDatabase = errors.New("config: exactly one of postgres_config or mysql_config is required")

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

// MysqlConfig is accepted for parity with original_source's MysqlConfig
// shape but has no driver wired in matchex (see DESIGN.md); a config
// naming only mysql_config fails catalog startup with ErrNoDatabase.
type MysqlConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type BackoffConfig struct {
	InitialMS int `yaml:"initial_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type Config struct {
	Kafka         KafkaConfig     `yaml:"kafka_config"`
	Postgres      *PostgresConfig `yaml:"postgres_config"`
	Mysql         *MysqlConfig    `yaml:"mysql_config"`
	Redis         RedisConfig     `yaml:"redis_config"`
	HTTP          HTTPConfig      `yaml:"http_config"`
	DecodeRetries int             `yaml:"decode_retries"`
	Backoff       BackoffConfig   `yaml:"backoff"`
}

const defaultPath = "./matchex.yaml"

// Load reads defaultPath if present, otherwise falls back to the embedded
// default configuration, then applies field defaults and validates the
// catalog backend is unambiguous.
func Load() (*Config, error) {
	raw, err := os.ReadFile(defaultPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", defaultPath, err)
		}
		raw = defaultYAML
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()

	if (cfg.Postgres == nil) == (cfg.Mysql == nil) {
		return nil, ErrNoDatabase
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9100"
	}
	if c.DecodeRetries == 0 {
		c.DecodeRetries = 3
	}
	if c.Backoff.InitialMS == 0 {
		c.Backoff.InitialMS = 1_000
	}
	if c.Backoff.MaxMS == 0 {
		c.Backoff.MaxMS = 30_000
	}
	if c.Backoff.JitterPct == 0 {
		c.Backoff.JitterPct = 10
	}
}
