package bridge

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bridge daemon configuration, loaded from a YAML file.
type Config struct {
	Listen     string           `yaml:"listen"`
	TV         TVConfig         `yaml:"tv"`
	Controller ControllerConfig `yaml:"controller"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// TVConfig identifies the television the bridge controls.
type TVConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`         // 0 = well-known remote-control port
	KeyDelayMs int    `yaml:"key_delay_ms"` // pause after each key send
}

// ControllerConfig is how the bridge introduces itself on the TV's
// permission prompt.
type ControllerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RateLimitConfig bounds inbound key requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond uint64 `yaml:"requests_per_second"`
}

// LoadConfig reads, parses, and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8090"
	}
	if c.Controller.ID == "" {
		c.Controller.ID = "samremote-bridge"
	}
	if c.Controller.Name == "" {
		c.Controller.Name = "samremote bridge"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if err := c.TV.Validate(); err != nil {
		return fmt.Errorf("tv: %w", err)
	}
	if c.Controller.ID == "" {
		return fmt.Errorf("controller: id cannot be empty")
	}
	return nil
}

// Validate checks the TV section.
func (t *TVConfig) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if net.ParseIP(t.Host) == nil {
		return fmt.Errorf("host %q is not an IP literal", t.Host)
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("port must be 0..65535, got %d", t.Port)
	}
	if t.KeyDelayMs < 0 {
		return fmt.Errorf("key_delay_ms cannot be negative, got %d", t.KeyDelayMs)
	}
	return nil
}

// KeyDelay returns the configured inter-key delay as a time.Duration.
func (t *TVConfig) KeyDelay() time.Duration {
	return time.Duration(t.KeyDelayMs) * time.Millisecond
}
