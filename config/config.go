// Package config loads the broker's YAML configuration file, mapping
// directly onto the listen/auth/protocol/store/delivery/frame option
// tree.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
	CA      string `yaml:"ca"`
	Verify  string `yaml:"verify"` // none | optional | required
}

type ListenConfig struct {
	Address string    `yaml:"address"`
	Port    uint16    `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StoreConfig struct {
	Root       string `yaml:"root"`
	BucketSize int64  `yaml:"bucket_size"`
}

type DeliveryConfig struct {
	Workers        uint32 `yaml:"workers"`
	QueueWatermark uint32 `yaml:"queue_watermark"`
	AckTimeoutMS   uint32 `yaml:"ack_timeout_ms"`
	MaxAckMisses   uint32 `yaml:"max_ack_misses"`
}

type FrameConfig struct {
	MaxBytes uint32 `yaml:"max_bytes"`
}

// SessionConfig selects the session registry's backing Store. The
// "memory" backend (the default) keeps no durable state across a
// broker restart; "pebble" persists the registry to disk so a
// reconnecting client can still Resume after the broker process
// itself restarts.
type SessionConfig struct {
	Backend   string `yaml:"backend"` // memory | pebble
	PebbleDir string `yaml:"pebble_dir"`
}

// RateLimitConfig bounds per-client PUBLISH throughput (SPEC_FULL §E.1).
// Disabled (MaxRate 0) by default; spec §6 has no dedicated section for
// it, so it lives under its own top-level key rather than overloading
// delivery.*.
type RateLimitConfig struct {
	Enabled  bool   `yaml:"enabled"`
	MaxRate  int    `yaml:"max_rate"`
	WindowMS uint32 `yaml:"window_ms"`
}

type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Auth      AuthConfig      `yaml:"auth"`
	Protocol  string          `yaml:"protocol"` // smq | mqtt
	Store     StoreConfig     `yaml:"store"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Frame     FrameConfig     `yaml:"frame"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Default returns the option defaults spec §6 prescribes when a field
// is left unset in the YAML document.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Address: "0.0.0.0"},
		Protocol: "smq",
		Store:    StoreConfig{BucketSize: 64 * 1024 * 1024},
		Delivery: DeliveryConfig{Workers: 8, QueueWatermark: 1024, AckTimeoutMS: 30000, MaxAckMisses: 3},
		Frame:    FrameConfig{MaxBytes: 16 * 1024 * 1024},
		Session:  SessionConfig{Backend: "memory"},
	}
}

// Load reads and validates the YAML document at path, layering it over
// Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields spec §6 requires, returning the first
// violation found.
func (c *Config) Validate() error {
	if c.Listen.Port == 0 {
		return ErrMissingListenPort
	}
	switch c.Protocol {
	case "smq", "mqtt":
	default:
		return ErrInvalidProtocol
	}
	if c.Listen.TLS.Enabled {
		if c.Listen.TLS.Cert == "" || c.Listen.TLS.Key == "" {
			return ErrMissingTLSCert
		}
		switch c.Listen.TLS.Verify {
		case "", "none", "optional", "required":
		default:
			return ErrInvalidTLSVerify
		}
	}
	switch c.Session.Backend {
	case "", "memory":
	case "pebble":
		if c.Session.PebbleDir == "" {
			return ErrMissingSessionPebbleDir
		}
	default:
		return ErrInvalidSessionBackend
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxRate <= 0 {
		return ErrInvalidRateLimit
	}
	return nil
}
