package keepalive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML representation of Config. Durations are carried as
// integer milliseconds to keep config files interoperable with other vigil
// implementations.
type fileConfig struct {
	IntervalMs    int64 `yaml:"interval_ms"`
	TimeoutMs     int64 `yaml:"timeout_ms"`
	TickMs        int64 `yaml:"tick_ms"`
	StartJitterMs int64 `yaml:"start_jitter_ms"`
	MaxBuckets    int   `yaml:"max_buckets"`
}

// LoadConfig reads a manager configuration from a YAML file. Omitted fields
// keep their defaults; the result is validated before being returned.
//
// Example file:
//
//	interval_ms: 30000
//	timeout_ms: 60000
//	tick_ms: 1000
//	start_jitter_ms: 5000
//	max_buckets: 16
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultConfig()
	if fc.IntervalMs != 0 {
		cfg.Interval = time.Duration(fc.IntervalMs) * time.Millisecond
	}
	if fc.TimeoutMs != 0 {
		cfg.Timeout = time.Duration(fc.TimeoutMs) * time.Millisecond
	}
	if fc.TickMs != 0 {
		cfg.Tick = time.Duration(fc.TickMs) * time.Millisecond
	}
	if fc.StartJitterMs != 0 {
		cfg.StartJitter = time.Duration(fc.StartJitterMs) * time.Millisecond
	}
	if fc.MaxBuckets != 0 {
		cfg.MaxBuckets = fc.MaxBuckets
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
