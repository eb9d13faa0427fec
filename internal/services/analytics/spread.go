package analytics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"PairPulse/internal/domain/models"
)

// Spread builds the series a - ratio*b over an aligned pair.
func Spread(p *AlignedPair, ratio float64) []models.SeriesPoint {
	out := make([]models.SeriesPoint, p.Len())
	for i := range p.Timestamps {
		out[i] = models.SeriesPoint{
			Timestamp: p.Timestamps[i],
			Value:     p.A[i] - ratio*p.B[i],
		}
	}
	return out
}

// ZScores computes the rolling z-score of a series over the trailing
// window. The first window-1 points have no full window and are omitted.
// A window with zero standard deviation yields z = 0, never NaN.
func ZScores(series []models.SeriesPoint, window int) ([]models.SeriesPoint, error) {
	if window < 2 {
		return nil, fmt.Errorf("z-score window %d: %w", window, models.ErrInvalidParameter)
	}
	if len(series) < window {
		return nil, fmt.Errorf("need %d points, have %d: %w", window, len(series), models.ErrInsufficientData)
	}

	vals := make([]float64, len(series))
	for i, p := range series {
		vals[i] = p.Value
	}

	out := make([]models.SeriesPoint, 0, len(series)-window+1)
	for i := window - 1; i < len(vals); i++ {
		win := vals[i-window+1 : i+1]
		mean := stat.Mean(win, nil)
		std := sampleStd(win)
		z := 0.0
		if std > 0 {
			z = (vals[i] - mean) / std
		}
		out = append(out, models.SeriesPoint{Timestamp: series[i].Timestamp, Value: z})
	}
	return out, nil
}

// RollingCorrelation computes the trailing-window Pearson correlation of
// an aligned pair. Points whose window has fewer than two observations or
// zero variance on either side are undefined and omitted.
func RollingCorrelation(p *AlignedPair, window int) ([]models.SeriesPoint, error) {
	if window < 2 {
		return nil, fmt.Errorf("correlation window %d: %w", window, models.ErrInvalidParameter)
	}
	if err := p.requirePoints(window); err != nil {
		return nil, err
	}

	out := make([]models.SeriesPoint, 0, p.Len()-window+1)
	for i := window - 1; i < p.Len(); i++ {
		winA := p.A[i-window+1 : i+1]
		winB := p.B[i-window+1 : i+1]
		if sampleStd(winA) == 0 || sampleStd(winB) == 0 {
			continue
		}
		out = append(out, models.SeriesPoint{
			Timestamp: p.Timestamps[i],
			Value:     stat.Correlation(winA, winB, nil),
		})
	}
	return out, nil
}

// Correlate returns the Pearson correlation of the trailing window of an
// aligned pair, or nil when it is undefined.
func Correlate(p *AlignedPair, window int) *float64 {
	tail := p.Tail(window)
	if tail.Len() < 2 {
		return nil
	}
	if sampleStd(tail.A) == 0 || sampleStd(tail.B) == 0 {
		return nil
	}
	r := stat.Correlation(tail.A, tail.B, nil)
	return &r
}

// BuildCorrelationMatrix computes pairwise trailing-window correlations
// across instruments. series maps instrument to its ascending bar slice.
// The result is symmetric with 1.0 on the diagonal for any instrument
// with at least one bar; undefined pairs stay nil.
func BuildCorrelationMatrix(instruments []string, series map[string][]models.Bar, window int) (*models.CorrelationMatrix, error) {
	if window < 2 {
		return nil, fmt.Errorf("correlation window %d: %w", window, models.ErrInvalidParameter)
	}
	m := &models.CorrelationMatrix{
		Instruments: instruments,
		Window:      window,
		Cells:       make(map[string]map[string]*float64, len(instruments)),
	}
	for _, inst := range instruments {
		m.Cells[inst] = make(map[string]*float64, len(instruments))
	}

	one := 1.0
	for i, a := range instruments {
		if len(series[a]) > 0 {
			v := one
			m.Cells[a][a] = &v
		}
		for _, b := range instruments[i+1:] {
			r := Correlate(AlignBars(series[a], series[b]), window)
			m.Cells[a][b] = r
			m.Cells[b][a] = r
		}
	}
	return m, nil
}
