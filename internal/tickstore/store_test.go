package tickstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

func tick(inst string, ts time.Time, price, qty float64) *models.Tick {
	return &models.Tick{Instrument: inst, Timestamp: ts, Price: price, Quantity: qty}
}

func TestAppendOrdersOutOfOrderTicks(t *testing.T) {
	s := New()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(tick("BTCUSDT", base.Add(2*time.Second), 101, 1)))
	require.NoError(t, s.Append(tick("BTCUSDT", base, 100, 1)))
	require.NoError(t, s.Append(tick("BTCUSDT", base.Add(time.Second), 100.5, 2)))

	got, err := s.Range("BTCUSDT", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 100.0, got[0].Price)
	assert.Equal(t, 100.5, got[1].Price)
	assert.Equal(t, 101.0, got[2].Price)
}

func TestAppendDuplicateIsIdempotent(t *testing.T) {
	s := New()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tk := tick("ETHUSDT", base, 3000, 0.5)

	require.NoError(t, s.Append(tk))
	require.NoError(t, s.Append(tick("ETHUSDT", base, 3000, 0.5)))
	assert.Equal(t, 1, s.Len("ETHUSDT"))

	// Same timestamp, different price is a distinct tick.
	require.NoError(t, s.Append(tick("ETHUSDT", base, 3001, 0.5)))
	assert.Equal(t, 2, s.Len("ETHUSDT"))
}

func TestRangeUnknownInstrument(t *testing.T) {
	s := New()
	_, err := s.Range("NOPE", time.Time{}, time.Time{}, 0)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRangeBoundsAndLimit(t *testing.T) {
	s := New()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(tick("BTCUSDT", base.Add(time.Duration(i)*time.Second), 100+float64(i), 1)))
	}

	got, err := s.Range("BTCUSDT", base.Add(2*time.Second), base.Add(6*time.Second), 0)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 102.0, got[0].Price)
	assert.Equal(t, 106.0, got[len(got)-1].Price)

	// Limit keeps the most recent ticks, still ascending.
	got, err = s.Range("BTCUSDT", time.Time{}, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 107.0, got[0].Price)
	assert.Equal(t, 109.0, got[2].Price)
}

func TestAppendRejectsExpired(t *testing.T) {
	s := New(WithRetention(time.Minute))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(tick("BTCUSDT", base, 100, 1)))
	err := s.Append(tick("BTCUSDT", base.Add(-2*time.Minute), 99, 1))
	assert.True(t, errors.Is(err, ErrExpired))
	assert.Equal(t, 1, s.Len("BTCUSDT"))
}

func TestAppendRejectsMalformed(t *testing.T) {
	s := New()
	err := s.Append(&models.Tick{Instrument: "BTCUSDT", Timestamp: time.Now(), Price: -1})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len("BTCUSDT"))
}

func TestSinkSeesEveryAppend(t *testing.T) {
	s := New()
	var seen []*models.Tick
	s.AddSink(func(tk *models.Tick) { seen = append(seen, tk) })

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(tick("BTCUSDT", base, 100, 1)))
	require.NoError(t, s.Append(tick("BTCUSDT", base, 100, 1))) // duplicate, no notify
	require.NoError(t, s.Append(tick("BTCUSDT", base.Add(time.Second), 101, 1)))

	require.Len(t, seen, 2)
	assert.Equal(t, 101.0, seen[1].Price)
}

func TestEvictionByCount(t *testing.T) {
	s := New(WithMaxTicks(5))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		require.NoError(t, s.Append(tick("BTCUSDT", base.Add(time.Duration(i)*time.Second), 100+float64(i), 1)))
	}
	assert.Equal(t, 5, s.Len("BTCUSDT"))
	got, err := s.Range("BTCUSDT", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 103.0, got[0].Price)
}

func TestInstruments(t *testing.T) {
	s := New()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(tick("ETHUSDT", base, 3000, 1)))
	require.NoError(t, s.Append(tick("BTCUSDT", base, 100, 1)))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, s.Instruments())
}
