package analytics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"PairPulse/internal/domain/models"
)

// olsHedge fits a = intercept + ratio*b by ordinary least squares and
// reports the fit's r-squared.
func olsHedge(a, b []float64) (ratio, intercept, r2 float64, err error) {
	if len(a) < 2 || len(a) != len(b) {
		return 0, 0, 0, fmt.Errorf("ols: %w", models.ErrInsufficientData)
	}
	if sampleStd(b) == 0 {
		return 0, 0, 0, fmt.Errorf("ols: zero variance regressor: %w", models.ErrInsufficientData)
	}
	intercept, ratio = stat.LinearRegression(b, a, nil, false)
	r2 = stat.RSquared(b, a, nil, intercept, ratio)
	return ratio, intercept, r2, nil
}
