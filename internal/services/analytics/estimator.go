package analytics

import (
	"fmt"

	"PairPulse/internal/domain/models"
)

// Method selects a hedge ratio estimator.
type Method string

const (
	MethodOLS      Method = "ols"
	MethodKalman   Method = "kalman"
	MethodHuber    Method = "huber"
	MethodTheilSen Method = "theilsen"
)

// MinHedgePoints is the smallest aligned window any estimator accepts.
const MinHedgePoints = 10

// ParseMethod validates an estimator name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodOLS, MethodKalman, MethodHuber, MethodTheilSen:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown hedge method %q", models.ErrInvalidParameter, s)
	}
}

// HedgeEstimator dispatches hedge ratio estimation across methods. The
// batch methods are stateless; Kalman filters persist in the bank keyed
// by pair identity.
type HedgeEstimator struct {
	kalman *KalmanBank
}

// NewHedgeEstimator creates an estimator with a fresh Kalman bank.
func NewHedgeEstimator() *HedgeEstimator {
	return &HedgeEstimator{kalman: NewKalmanBank()}
}

// Estimate fits the hedge ratio of instrumentA against instrumentB over
// the trailing `window` points of the aligned pair. stateKey identifies
// the Kalman filter to reuse; it should encode pair, resolution and
// window.
func (e *HedgeEstimator) Estimate(method Method, stateKey, instrumentA, instrumentB string, p *AlignedPair, window int) (*models.HedgeRatioResult, error) {
	if window < MinHedgePoints {
		return nil, fmt.Errorf("hedge window %d below minimum %d: %w", window, MinHedgePoints, models.ErrInvalidParameter)
	}
	tail := p.Tail(window)
	if err := tail.requirePoints(MinHedgePoints); err != nil {
		return nil, err
	}
	if !isFiniteAll(tail.A) || !isFiniteAll(tail.B) {
		return nil, fmt.Errorf("non-finite price in window: %w", models.ErrInsufficientData)
	}

	res := &models.HedgeRatioResult{
		InstrumentA: instrumentA,
		InstrumentB: instrumentB,
		Method:      string(method),
		WindowSize:  tail.Len(),
	}

	var err error
	switch method {
	case MethodOLS:
		var r2 float64
		res.Ratio, res.Intercept, r2, err = olsHedge(tail.A, tail.B)
		if err == nil {
			res.RSquared = &r2
		}
	case MethodKalman:
		res.Ratio, res.Intercept, err = e.kalman.Update(stateKey, tail)
	case MethodHuber:
		res.Ratio, res.Intercept, err = huberHedge(tail.A, tail.B)
	case MethodTheilSen:
		res.Ratio, res.Intercept, err = theilSenHedge(tail.A, tail.B)
	default:
		return nil, fmt.Errorf("%w: unknown hedge method %q", models.ErrInvalidParameter, method)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
