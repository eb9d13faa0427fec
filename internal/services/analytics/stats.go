// Package analytics implements the numerical core: descriptive stats,
// spread construction, hedge ratio estimators, stationarity testing and
// the mean-reversion backtest. Everything here is pure computation over
// bar series; state lives in the callers.
package analytics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"PairPulse/internal/domain/models"
)

// Closes extracts the close price series from bars, ascending order
// preserved.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// ComputeStats computes windowed descriptive statistics over the close
// series of the given bars. The window takes the trailing `window` bars;
// fewer bars than the window is an error.
func ComputeStats(bars []models.Bar, window int) (*models.PriceStats, error) {
	if window < 1 {
		return nil, fmt.Errorf("window %d: %w", window, models.ErrInvalidParameter)
	}
	if len(bars) < window {
		return nil, fmt.Errorf("need %d bars, have %d: %w", window, len(bars), models.ErrInsufficientData)
	}
	tail := bars[len(bars)-window:]
	closes := Closes(tail)

	s := &models.PriceStats{
		Instrument: tail[0].Instrument,
		Resolution: tail[0].Resolution,
		Window:     window,
		Mean:       stat.Mean(closes, nil),
		Min:        closes[0],
		Max:        closes[0],
		Median:     median(closes),
		Current:    closes[len(closes)-1],
		Change:     closes[len(closes)-1] - closes[0],
	}
	if window > 1 {
		s.Std = stat.StdDev(closes, nil)
	}
	for _, v := range closes {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if first := closes[0]; first != 0 {
		pct := s.Change / first * 100
		s.ChangePct = &pct
	}
	return s, nil
}

// ComputeLiquidity derives volume metrics over the trailing `window`
// bars. VWAP weights closes by bar volume and falls back to the mean
// close when the window traded no volume.
func ComputeLiquidity(bars []models.Bar, window int) (*models.LiquidityStats, error) {
	if window < 1 {
		return nil, fmt.Errorf("window %d: %w", window, models.ErrInvalidParameter)
	}
	if len(bars) < window {
		return nil, fmt.Errorf("need %d bars, have %d: %w", window, len(bars), models.ErrInsufficientData)
	}
	tail := bars[len(bars)-window:]

	volumes := make([]float64, len(tail))
	var total, weighted float64
	for i := range tail {
		volumes[i] = tail[i].Volume
		total += tail[i].Volume
		weighted += tail[i].Close * tail[i].Volume
	}

	l := &models.LiquidityStats{
		Instrument:    tail[0].Instrument,
		Resolution:    tail[0].Resolution,
		AvgVolume:     total / float64(len(tail)),
		TotalVolume:   total,
		CurrentVolume: tail[len(tail)-1].Volume,
	}
	if len(volumes) > 1 {
		l.VolumeStd = stat.StdDev(volumes, nil)
	}
	if total > 0 {
		l.VWAP = weighted / total
	} else {
		l.VWAP = stat.Mean(Closes(tail), nil)
	}
	return l, nil
}

// median with linear interpolation between the two middle elements.
func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sampleStd is the n-1 standard deviation, 0 for fewer than two values.
func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	return stat.StdDev(vals, nil)
}

func isFiniteAll(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
