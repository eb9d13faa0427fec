package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("BTCUSDT", 3, 1))
	}
	assert.False(t, l.Allow("BTCUSDT", 3, 1))

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("BTCUSDT", 3, 1))
	assert.False(t, l.Allow("BTCUSDT", 3, 1))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("BTCUSDT", 1, 1))
	assert.False(t, l.Allow("BTCUSDT", 1, 1))
	assert.True(t, l.Allow("ETHUSDT", 1, 1))
}

func TestLimiter_RefillCapsAtCapacity(t *testing.T) {
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("BTCUSDT", 2, 10))
	clock = clock.Add(time.Minute)
	assert.True(t, l.Allow("BTCUSDT", 2, 10))
	assert.True(t, l.Allow("BTCUSDT", 2, 10))
	assert.False(t, l.Allow("BTCUSDT", 2, 10))
}
