// Package backoff provides exponential redial delays with jitter for
// transports that reconnect after a liveness termination or peer loss.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Default redial parameters.
const (
	// DefaultInitial is the delay before the first redial attempt.
	DefaultInitial = 500 * time.Millisecond

	// DefaultMax caps the delay between redial attempts.
	DefaultMax = 30 * time.Second

	// DefaultMultiplier is the growth factor between attempts.
	DefaultMultiplier = 2.0

	// DefaultJitter is the maximum jitter as a fraction of the base delay.
	// Jitter keeps a fleet of peers from redialing in lockstep.
	DefaultJitter = 0.25
)

// Config customizes a Backoff. Zero durations and a multiplier at or below 1
// fall back to the package defaults; a zero Jitter disables jitter.
type Config struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff produces a growing sequence of redial delays. Safe for concurrent
// use.
type Backoff struct {
	mu sync.Mutex

	// current is the base delay for the next attempt, before jitter.
	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	rng *rand.Rand
}

// New creates a backoff with the default parameters.
func New() *Backoff {
	return &Backoff{
		current:    DefaultInitial,
		initial:    DefaultInitial,
		max:        DefaultMax,
		multiplier: DefaultMultiplier,
		jitter:     DefaultJitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewWithConfig creates a backoff with custom parameters.
func NewWithConfig(cfg Config) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the jittered delay for the current attempt and advances the
// base delay for the next one.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Peek returns the jittered delay for the current attempt without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset returns the backoff to its initial delay. Call after a successful
// connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}
