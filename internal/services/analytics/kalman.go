package analytics

import (
	"fmt"
	"sync"
	"time"

	"PairPulse/internal/domain/models"
)

const (
	// kalmanDelta controls how fast the hedge ratio is allowed to drift.
	kalmanDelta = 1e-4
	// kalmanObsVar is the observation noise variance.
	kalmanObsVar = 1.0
)

// kalmanFilter tracks the state [intercept, ratio] of a = c + h*b with a
// random-walk transition. The observation row is [1, b_t].
type kalmanFilter struct {
	c, h     float64       // state: intercept, ratio
	p        [2][2]float64 // state covariance
	lastSeen time.Time     // newest observation consumed
	observed int
}

func newKalmanFilter() *kalmanFilter {
	return &kalmanFilter{
		c: 0,
		h: 1,
		p: [2][2]float64{{1, 0}, {0, 1}},
	}
}

// step runs one predict-update cycle for observation (a, b).
func (f *kalmanFilter) step(a, b float64) {
	q := kalmanDelta / (1 - kalmanDelta)

	// Predict: identity transition, covariance inflated by Q.
	p := f.p
	p[0][0] += q
	p[1][1] += q

	// Innovation for observation row H = [1, b].
	predicted := f.c + f.h*b
	innov := a - predicted

	// S = H P H^T + R
	ph0 := p[0][0] + p[0][1]*b
	ph1 := p[1][0] + p[1][1]*b
	s := ph0 + ph1*b + kalmanObsVar

	// Kalman gain K = P H^T / S
	k0 := ph0 / s
	k1 := ph1 / s

	f.c = f.c + k0*innov
	f.h = f.h + k1*innov

	// P = (I - K H) P
	f.p[0][0] = p[0][0] - k0*(p[0][0]+b*p[1][0])
	f.p[0][1] = p[0][1] - k0*(p[0][1]+b*p[1][1])
	f.p[1][0] = p[1][0] - k1*(p[0][0]+b*p[1][0])
	f.p[1][1] = p[1][1] - k1*(p[0][1]+b*p[1][1])
	f.observed++
}

// KalmanBank keeps one persistent filter per pair key. The key must
// identify instrument pair, resolution and window so a parameter change
// starts a fresh filter rather than contaminating an old state.
type KalmanBank struct {
	mu      sync.Mutex
	filters map[string]*kalmanFilter
}

// NewKalmanBank creates an empty bank.
func NewKalmanBank() *KalmanBank {
	return &KalmanBank{filters: make(map[string]*kalmanFilter)}
}

// Update feeds the filter for key with every aligned point newer than
// what it has already consumed, then returns the current state. A window
// that starts after the filter's last seen timestamp means the series
// has a gap; the filter is reinitialized rather than carried across it.
// The call is serialized per bank, so concurrent requests for the same
// pair see a consistent filter.
func (k *KalmanBank) Update(key string, p *AlignedPair) (ratio, intercept float64, err error) {
	if p.Len() == 0 {
		return 0, 0, fmt.Errorf("kalman: %w", models.ErrInsufficientData)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	f := k.filters[key]
	if f != nil && f.observed > 0 && f.lastSeen.Before(p.Timestamps[0]) {
		f = nil
	}
	if f == nil {
		f = newKalmanFilter()
		k.filters[key] = f
	}
	for i := range p.Timestamps {
		if !p.Timestamps[i].After(f.lastSeen) {
			continue
		}
		f.step(p.A[i], p.B[i])
		f.lastSeen = p.Timestamps[i]
	}
	if f.observed == 0 {
		return 0, 0, fmt.Errorf("kalman: %w", models.ErrInsufficientData)
	}
	return f.h, f.c, nil
}

// Reset drops the filter state for key.
func (k *KalmanBank) Reset(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.filters, key)
}
