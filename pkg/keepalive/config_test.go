package keepalive

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero interval", func(c *Config) { c.Interval = 0 }, false},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, false},
		{"timeout below interval", func(c *Config) { c.Timeout = c.Interval - 1 }, false},
		{"timeout equals interval", func(c *Config) { c.Timeout = c.Interval }, true},
		{"zero tick", func(c *Config) { c.Tick = 0 }, false},
		{"zero max buckets", func(c *Config) { c.MaxBuckets = 0 }, false},
		{"negative jitter", func(c *Config) { c.StartJitter = -time.Second }, false},
		{"zero jitter", func(c *Config) { c.StartJitter = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
			}
		})
	}
}

func TestConfigDerivation(t *testing.T) {
	tests := []struct {
		name       string
		interval   time.Duration
		tick       time.Duration
		maxBuckets int
		buckets    int
		effTick    time.Duration
	}{
		{
			name:       "defaults capped by max buckets",
			interval:   30 * time.Second,
			tick:       time.Second,
			maxBuckets: 16,
			buckets:    16,
			effTick:    1875 * time.Millisecond,
		},
		{
			name:       "tick divides interval exactly",
			interval:   10 * time.Second,
			tick:       time.Second,
			maxBuckets: 100,
			buckets:    10,
			effTick:    time.Second,
		},
		{
			name:       "fast tick floored before dividing",
			interval:   time.Second,
			tick:       time.Millisecond,
			maxBuckets: 100,
			buckets:    20,
			effTick:    50 * time.Millisecond,
		},
		{
			name:       "interval shorter than tick yields one bucket",
			interval:   20 * time.Millisecond,
			tick:       time.Second,
			maxBuckets: 16,
			buckets:    1,
			effTick:    20 * time.Millisecond,
		},
		{
			name:       "effective tick floored",
			interval:   5 * time.Millisecond,
			tick:       time.Second,
			maxBuckets: 16,
			buckets:    1,
			effTick:    10 * time.Millisecond,
		},
		{
			name:       "division rounds to nearest",
			interval:   time.Second,
			tick:       300 * time.Millisecond,
			maxBuckets: 16,
			buckets:    3,
			effTick:    333333333 * time.Nanosecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Interval:   tt.interval,
				Timeout:    tt.interval * 2,
				Tick:       tt.tick,
				MaxBuckets: tt.maxBuckets,
			}
			assert.Equal(t, tt.buckets, cfg.BucketCount())
			assert.Equal(t, tt.effTick, cfg.EffectiveTick())
		})
	}
}
