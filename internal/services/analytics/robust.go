package analytics

import (
	"fmt"
	"math"

	"PairPulse/internal/domain/models"
)

const (
	huberDelta   = 1.345 // 95% efficiency under normal errors
	huberMaxIter = 50
	huberTol     = 1e-8
)

// huberHedge fits a = intercept + ratio*b by iteratively reweighted
// least squares with the Huber loss. Outlier ticks get down-weighted
// instead of dominating the slope.
func huberHedge(a, b []float64) (ratio, intercept float64, err error) {
	if len(a) < 3 || len(a) != len(b) {
		return 0, 0, fmt.Errorf("huber: %w", models.ErrInsufficientData)
	}
	if sampleStd(b) == 0 {
		return 0, 0, fmt.Errorf("huber: zero variance regressor: %w", models.ErrInsufficientData)
	}

	// OLS start.
	ratio, intercept, _, err = olsHedge(a, b)
	if err != nil {
		return 0, 0, err
	}

	n := len(a)
	resid := make([]float64, n)
	weights := make([]float64, n)
	for iter := 0; iter < huberMaxIter; iter++ {
		for i := range a {
			resid[i] = a[i] - intercept - ratio*b[i]
		}
		scale := madScale(resid)
		if scale == 0 {
			break // perfect fit
		}
		for i, r := range resid {
			u := math.Abs(r) / scale
			if u <= huberDelta {
				weights[i] = 1
			} else {
				weights[i] = huberDelta / u
			}
		}
		newRatio, newIntercept := weightedLinFit(b, a, weights)
		if math.Abs(newRatio-ratio) < huberTol && math.Abs(newIntercept-intercept) < huberTol {
			ratio, intercept = newRatio, newIntercept
			break
		}
		ratio, intercept = newRatio, newIntercept
	}
	return ratio, intercept, nil
}

// theilSenHedge fits the median of all pairwise slopes, with intercept
// the median of a - ratio*b. Breakdown point near 29%.
func theilSenHedge(a, b []float64) (ratio, intercept float64, err error) {
	if len(a) < 3 || len(a) != len(b) {
		return 0, 0, fmt.Errorf("theilsen: %w", models.ErrInsufficientData)
	}

	slopes := make([]float64, 0, len(a)*(len(a)-1)/2)
	for i := 0; i < len(a); i++ {
		for j := i + 1; j < len(a); j++ {
			dx := b[j] - b[i]
			if dx == 0 {
				continue
			}
			slopes = append(slopes, (a[j]-a[i])/dx)
		}
	}
	if len(slopes) == 0 {
		return 0, 0, fmt.Errorf("theilsen: zero variance regressor: %w", models.ErrInsufficientData)
	}
	ratio = median(slopes)

	offsets := make([]float64, len(a))
	for i := range a {
		offsets[i] = a[i] - ratio*b[i]
	}
	intercept = median(offsets)
	return ratio, intercept, nil
}


// madScale is the median absolute deviation scaled to be consistent with
// the standard deviation under normality.
func madScale(resid []float64) float64 {
	abs := make([]float64, len(resid))
	for i, r := range resid {
		abs[i] = math.Abs(r)
	}
	return median(abs) / 0.6745
}

// weightedLinFit solves the weighted normal equations for y = c + m*x.
func weightedLinFit(x, y, w []float64) (m, c float64) {
	var sw, swx, swy, swxx, swxy float64
	for i := range x {
		sw += w[i]
		swx += w[i] * x[i]
		swy += w[i] * y[i]
		swxx += w[i] * x[i] * x[i]
		swxy += w[i] * x[i] * y[i]
	}
	det := sw*swxx - swx*swx
	if det == 0 {
		return 0, swy / sw
	}
	m = (sw*swxy - swx*swy) / det
	c = (swy - m*swx) / sw
	return m, c
}
