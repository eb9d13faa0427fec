package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

func barSeries(inst string, closes ...float64) []models.Bar {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{
			Instrument:  inst,
			Resolution:  "1m",
			BucketStart: base.Add(time.Duration(i) * time.Minute),
			Open:        c,
			High:        c,
			Low:         c,
			Close:       c,
			Volume:      1,
		}
	}
	return out
}

func TestComputeStats(t *testing.T) {
	bars := barSeries("BTCUSDT", 100, 102, 104, 103, 106)

	s, err := ComputeStats(bars, 5)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", s.Instrument)
	assert.Equal(t, 5, s.Window)
	assert.InDelta(t, 103.0, s.Mean, 1e-9)
	assert.Equal(t, 100.0, s.Min)
	assert.Equal(t, 106.0, s.Max)
	assert.Equal(t, 103.0, s.Median)
	assert.Equal(t, 106.0, s.Current)
	assert.Equal(t, 6.0, s.Change)
	require.NotNil(t, s.ChangePct)
	assert.InDelta(t, 6.0, *s.ChangePct, 1e-9)
	assert.Greater(t, s.Std, 0.0)
}

func TestComputeStatsWindowTrims(t *testing.T) {
	bars := barSeries("BTCUSDT", 1, 1, 1, 200, 210)
	s, err := ComputeStats(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 200.0, s.Min)
	assert.Equal(t, 210.0, s.Max)
	assert.Equal(t, 205.0, s.Median)
}

func TestComputeStatsSinglePointWindow(t *testing.T) {
	bars := barSeries("BTCUSDT", 100, 105)
	s, err := ComputeStats(bars, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Std)
	assert.Equal(t, 105.0, s.Min)
	assert.Equal(t, 105.0, s.Max)
	assert.Equal(t, 105.0, s.Median)
	assert.Equal(t, 0.0, s.Change)
	require.NotNil(t, s.ChangePct)
	assert.Equal(t, 0.0, *s.ChangePct)
}

func TestComputeStatsZeroFirstValue(t *testing.T) {
	bars := barSeries("BTCUSDT", 0, 5)
	s, err := ComputeStats(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, s.Change)
	assert.Nil(t, s.ChangePct)
}

func TestComputeStatsErrors(t *testing.T) {
	bars := barSeries("BTCUSDT", 100, 101)

	_, err := ComputeStats(bars, 3)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	_, err = ComputeStats(bars, 0)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestComputeLiquidity(t *testing.T) {
	bars := barSeries("BTCUSDT", 100, 200, 300)
	bars[0].Volume = 10
	bars[1].Volume = 20
	bars[2].Volume = 30

	l, err := ComputeLiquidity(bars, 3)
	require.NoError(t, err)
	assert.Equal(t, 20.0, l.AvgVolume)
	assert.Equal(t, 60.0, l.TotalVolume)
	assert.Equal(t, 30.0, l.CurrentVolume)
	assert.Greater(t, l.VolumeStd, 0.0)
	// (100*10 + 200*20 + 300*30) / 60
	assert.InDelta(t, 233.333333, l.VWAP, 1e-5)
}

func TestComputeLiquidityZeroVolumeFallsBackToMeanClose(t *testing.T) {
	bars := barSeries("BTCUSDT", 100, 200)
	bars[0].Volume = 0
	bars[1].Volume = 0

	l, err := ComputeLiquidity(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, l.TotalVolume)
	assert.Equal(t, 150.0, l.VWAP)
}
