package keepalive

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vigil-proto/vigil-go/pkg/log"
)

// Scheduling constants.
const (
	// MinSweepTick is the floor applied to the requested tick when deriving
	// the bucket count. Requests faster than this do not create more buckets.
	MinSweepTick = 50 * time.Millisecond

	// MinEffectiveTick is the floor applied to the derived tick cadence.
	// The scheduler never ticks faster than this.
	MinEffectiveTick = 10 * time.Millisecond

	// DefaultInterval is the default full-rotation period.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout is the default maximum silence before termination.
	DefaultTimeout = 60 * time.Second

	// DefaultTick is the default requested sweep cadence.
	DefaultTick = 1 * time.Second

	// DefaultStartJitter is the default maximum randomized startup delay.
	DefaultStartJitter = 5 * time.Second

	// DefaultMaxBuckets is the default upper bound on rotation buckets.
	DefaultMaxBuckets = 16
)

// ErrInvalidConfig indicates an invalid manager configuration.
var ErrInvalidConfig = errors.New("invalid keepalive configuration")

// Config configures a Manager. It is validated once at construction and
// never mutated afterwards.
type Config struct {
	// Interval is the nominal full-rotation period: every tracked
	// connection is probed approximately once per Interval.
	Interval time.Duration

	// Timeout is the maximum allowed silence before a connection is
	// force-terminated. Must be at least Interval.
	Timeout time.Duration

	// Tick is the requested sweep cadence. The effective cadence is derived
	// from Interval and the bucket count; see EffectiveTick.
	Tick time.Duration

	// StartJitter is the maximum randomized delay before the first tick.
	// Zero starts steady ticking immediately.
	StartJitter time.Duration

	// MaxBuckets bounds the number of rotation buckets.
	MaxBuckets int

	// Logger is the optional operational logger. If nil, logging is
	// disabled.
	Logger *slog.Logger

	// ProtocolLogger optionally captures liveness events (probes, acks,
	// terminations, state changes). If nil, capture is disabled.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		Timeout:     DefaultTimeout,
		Tick:        DefaultTick,
		StartJitter: DefaultStartJitter,
		MaxBuckets:  DefaultMaxBuckets,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, c.Interval)
	}
	if c.Timeout < c.Interval {
		return fmt.Errorf("%w: timeout %v must be at least interval %v", ErrInvalidConfig, c.Timeout, c.Interval)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive, got %v", ErrInvalidConfig, c.Tick)
	}
	if c.MaxBuckets < 1 {
		return fmt.Errorf("%w: max buckets must be at least 1, got %d", ErrInvalidConfig, c.MaxBuckets)
	}
	if c.StartJitter < 0 {
		return fmt.Errorf("%w: start jitter must be non-negative, got %v", ErrInvalidConfig, c.StartJitter)
	}
	return nil
}

// BucketCount returns the derived number of rotation buckets:
// min(MaxBuckets, max(1, round(Interval / max(MinSweepTick, Tick)))).
func (c Config) BucketCount() int {
	base := c.Tick
	if base < MinSweepTick {
		base = MinSweepTick
	}
	n := int(math.Round(float64(c.Interval) / float64(base)))
	if n < 1 {
		n = 1
	}
	if n > c.MaxBuckets {
		n = c.MaxBuckets
	}
	return n
}

// EffectiveTick returns the derived sweep cadence:
// max(MinEffectiveTick, round(Interval / BucketCount)).
// This guarantees one full rotation over all buckets in approximately
// Interval regardless of the requested Tick.
func (c Config) EffectiveTick() time.Duration {
	tick := time.Duration(math.Round(float64(c.Interval) / float64(c.BucketCount())))
	if tick < MinEffectiveTick {
		tick = MinEffectiveTick
	}
	return tick
}
