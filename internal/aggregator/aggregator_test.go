package aggregator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
)

func tk(ts time.Time, price, qty float64) *models.Tick {
	return &models.Tick{Instrument: "BTCUSDT", Timestamp: ts, Price: price, Quantity: qty}
}

func TestOpenBarAccumulates(t *testing.T) {
	a := New(WithResolutions(domrepo.Res1m))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a.OnTick(tk(base.Add(1*time.Second), 100, 1))
	a.OnTick(tk(base.Add(20*time.Second), 103, 2))
	a.OnTick(tk(base.Add(40*time.Second), 99, 1))
	a.OnTick(tk(base.Add(59*time.Second), 101, 0.5))

	bars := a.Bars("BTCUSDT", domrepo.Res1m, time.Time{}, time.Time{}, 0)
	require.Len(t, bars, 1)
	b := bars[0]
	assert.Equal(t, base, b.BucketStart)
	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 103.0, b.High)
	assert.Equal(t, 99.0, b.Low)
	assert.Equal(t, 101.0, b.Close)
	assert.Equal(t, 4.5, b.Volume)
	assert.NoError(t, b.Validate())
}

func TestBarClosesOnNextBucket(t *testing.T) {
	a := New(WithResolutions(domrepo.Res1m))
	var closed []*models.Bar
	a.AddSink(func(b *models.Bar) { closed = append(closed, b) })

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a.OnTick(tk(base.Add(5*time.Second), 100, 1))
	a.OnTick(tk(base.Add(65*time.Second), 105, 1))

	require.Len(t, closed, 1)
	assert.Equal(t, base, closed[0].BucketStart)
	assert.Equal(t, 100.0, closed[0].Close)

	bars := a.Bars("BTCUSDT", domrepo.Res1m, time.Time{}, time.Time{}, 0)
	require.Len(t, bars, 2)
	assert.Equal(t, base.Add(time.Minute), bars[1].BucketStart)
	assert.Equal(t, 105.0, bars[1].Open)
}

func TestIdleBucketsAreSkipped(t *testing.T) {
	a := New(WithResolutions(domrepo.Res1s))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a.OnTick(tk(base, 100, 1))
	a.OnTick(tk(base.Add(10*time.Second), 110, 1)) // 9 empty buckets between

	bars := a.Bars("BTCUSDT", domrepo.Res1s, time.Time{}, time.Time{}, 0)
	require.Len(t, bars, 2)
	assert.Equal(t, base, bars[0].BucketStart)
	assert.Equal(t, base.Add(10*time.Second), bars[1].BucketStart)
}

func TestMultipleResolutionsFromOneStream(t *testing.T) {
	a := New()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 120; i++ {
		a.OnTick(tk(base.Add(time.Duration(i)*time.Second), 100+float64(i%5), 1))
	}

	assert.Equal(t, 119, a.ClosedCount("BTCUSDT", domrepo.Res1s))
	assert.Equal(t, 1, a.ClosedCount("BTCUSDT", domrepo.Res1m))
	assert.Equal(t, 0, a.ClosedCount("BTCUSDT", domrepo.Res5m))
}

func TestDuplicateTickFeedIsIdempotentAtBarLevel(t *testing.T) {
	// The tick store dedupes before notifying; an aggregator fed the same
	// deduped stream twice must be driven through the store in practice.
	// Here we verify invariants hold for bursty equal-price streams.
	a := New(WithResolutions(domrepo.Res1m))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		a.OnTick(tk(base.Add(time.Duration(i)*time.Second), 100, 1))
	}
	bars := a.Bars("BTCUSDT", domrepo.Res1m, time.Time{}, time.Time{}, 0)
	require.Len(t, bars, 1)
	assert.Equal(t, bars[0].Open, bars[0].High)
	assert.Equal(t, bars[0].Low, bars[0].Close)
}

func TestLateTickBeyondClosedBucketIsDropped(t *testing.T) {
	var late int
	a := New(WithResolutions(domrepo.Res1m), WithLateTickHook(func(string) { late++ }))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a.OnTick(tk(base, 100, 1))
	a.OnTick(tk(base.Add(2*time.Minute), 110, 1))
	a.OnTick(tk(base.Add(30*time.Second), 50, 1)) // belongs to an already closed bucket

	assert.Equal(t, 1, late)
	bars := a.Bars("BTCUSDT", domrepo.Res1m, time.Time{}, time.Time{}, 0)
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Low) // closed bar untouched
}

func TestFlushClosesElapsedOpenBar(t *testing.T) {
	a := New(WithResolutions(domrepo.Res1m))
	var closed []*models.Bar
	a.AddSink(func(b *models.Bar) { closed = append(closed, b) })

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a.OnTick(tk(base.Add(5*time.Second), 100, 1))

	a.Flush(base.Add(30 * time.Second)) // bucket not elapsed yet
	assert.Empty(t, closed)

	a.Flush(base.Add(time.Minute))
	require.Len(t, closed, 1)
	assert.Equal(t, base, closed[0].BucketStart)
	assert.Empty(t, a.Bars("BTCUSDT", domrepo.Res1m, time.Time{}, time.Time{}, 0)[1:])
}

func TestLateTickAfterFlushDoesNotReopenBucket(t *testing.T) {
	var late int
	a := New(WithResolutions(domrepo.Res1m), WithLateTickHook(func(string) { late++ }))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	a.OnTick(tk(base.Add(10*time.Second), 100, 1))
	// closes the 12:00 bucket, no open bar left
	a.Flush(base.Add(time.Minute))
	// belongs to the flushed bucket
	a.OnTick(tk(base.Add(30*time.Second), 50, 1))
	a.OnTick(tk(base.Add(2*time.Minute), 110, 1))
	a.Flush(base.Add(3 * time.Minute))

	assert.Equal(t, 1, late)
	bars := a.Bars("BTCUSDT", domrepo.Res1m, time.Time{}, time.Time{}, 0)
	require.Len(t, bars, 2)
	assert.Equal(t, base, bars[0].BucketStart)
	assert.Equal(t, 100.0, bars[0].Close) // flushed bar untouched by the late tick
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i].BucketStart.After(bars[i-1].BucketStart),
			"buckets must be strictly increasing")
	}
}

func TestBarInvariantsOverRandomishStream(t *testing.T) {
	a := New(WithResolutions(domrepo.Res1s, domrepo.Res1m))
	var closed []*models.Bar
	a.AddSink(func(b *models.Bar) { closed = append(closed, b) })

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	prices := []float64{100, 103, 98, 102, 97, 105, 101, 99, 104, 100}
	for i := 0; i < 300; i++ {
		a.OnTick(tk(base.Add(time.Duration(i*337)*time.Millisecond), prices[i%len(prices)], float64(i%3)))
	}
	a.Flush(base.Add(time.Hour))

	require.NotEmpty(t, closed)
	var prev *models.Bar
	for _, b := range closed {
		require.NoError(t, b.Validate())
		assert.GreaterOrEqual(t, b.High, b.Open)
		assert.GreaterOrEqual(t, b.High, b.Close)
		assert.LessOrEqual(t, b.Low, b.Open)
		assert.LessOrEqual(t, b.Low, b.Close)
		if prev != nil && prev.Resolution == b.Resolution {
			assert.True(t, b.BucketStart.After(prev.BucketStart), "bars must be strictly time-ordered")
		}
		prev = b
	}
}

func TestLastNClosed(t *testing.T) {
	a := New(WithResolutions(domrepo.Res1s))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a.OnTick(tk(base.Add(time.Duration(i)*time.Second), 100+float64(i), 1))
	}

	// 4 closed, 1 open
	got, err := a.LastNClosed("BTCUSDT", domrepo.Res1s, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 103.0, got[2].Close)

	_, err = a.LastNClosed("BTCUSDT", domrepo.Res1s, 10)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	_, err = a.LastNClosed("NOPE", domrepo.Res1s, 1)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
