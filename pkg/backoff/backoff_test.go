package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextGrowsToMax(t *testing.T) {
	b := NewWithConfig(Config{
		Initial:    time.Second,
		Max:        8 * time.Second,
		Multiplier: 2,
		Jitter:     0,
	})

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "attempt %d", i)
	}
	assert.Equal(t, len(want), b.Attempts())
}

func TestPeekDoesNotAdvance(t *testing.T) {
	b := NewWithConfig(Config{Initial: time.Second, Jitter: 0})

	assert.Equal(t, time.Second, b.Peek())
	assert.Equal(t, time.Second, b.Peek())
	assert.Equal(t, 0, b.Attempts())
}

func TestReset(t *testing.T) {
	b := NewWithConfig(Config{Initial: time.Second, Jitter: 0})
	b.Next()
	b.Next()

	b.Reset()

	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, time.Second, b.Next())
}

func TestJitterBounds(t *testing.T) {
	b := NewWithConfig(Config{Initial: time.Second, Jitter: 0.5})

	for i := 0; i < 100; i++ {
		d := b.Peek()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}
}

func TestConfigDefaults(t *testing.T) {
	b := NewWithConfig(Config{Jitter: 0})

	assert.Equal(t, DefaultInitial, b.Peek())
}
