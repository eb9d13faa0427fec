package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

func linearPair(n int, ratio, intercept float64) *AlignedPair {
	b := make([]float64, n)
	a := make([]float64, n)
	for i := 0; i < n; i++ {
		b[i] = float64(i + 1)
		a[i] = ratio*b[i] + intercept
	}
	return alignedPair(a, b)
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"ols", "kalman", "huber", "theilsen"} {
		m, err := ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(m))
	}
	_, err := ParseMethod("ridge")
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestOLSRecoversLinearRelation(t *testing.T) {
	e := NewHedgeEstimator()
	p := linearPair(20, 2, 1)

	res, err := e.Estimate(MethodOLS, "k", "AAA", "BBB", p, 20)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Ratio, 1e-9)
	assert.InDelta(t, 1.0, res.Intercept, 1e-9)
	require.NotNil(t, res.RSquared)
	assert.InDelta(t, 1.0, *res.RSquared, 1e-9)
	assert.Equal(t, "ols", res.Method)
	assert.Equal(t, 20, res.WindowSize)
}

func TestEstimateUsesTrailingWindow(t *testing.T) {
	e := NewHedgeEstimator()
	p := linearPair(50, 2, 1)

	res, err := e.Estimate(MethodOLS, "k", "AAA", "BBB", p, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, res.WindowSize)
	assert.InDelta(t, 2.0, res.Ratio, 1e-9)
}

func TestEstimateErrors(t *testing.T) {
	e := NewHedgeEstimator()

	_, err := e.Estimate(MethodOLS, "k", "AAA", "BBB", linearPair(20, 2, 0), 5)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter), "window below minimum")

	_, err = e.Estimate(MethodOLS, "k", "AAA", "BBB", linearPair(5, 2, 0), 10)
	assert.True(t, errors.Is(err, models.ErrInsufficientData), "too few aligned points")

	flat := alignedPair(
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		[]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5},
	)
	_, err = e.Estimate(MethodOLS, "k", "AAA", "BBB", flat, 10)
	assert.True(t, errors.Is(err, models.ErrInsufficientData), "zero variance regressor")

	_, err = e.Estimate(Method("ridge"), "k", "AAA", "BBB", linearPair(20, 2, 0), 20)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestHuberResistsOutliers(t *testing.T) {
	e := NewHedgeEstimator()
	p := linearPair(20, 2, 1)
	p.A[5] = 200
	p.A[12] = -100

	olsRes, err := e.Estimate(MethodOLS, "k", "AAA", "BBB", p, 20)
	require.NoError(t, err)
	hubRes, err := e.Estimate(MethodHuber, "k", "AAA", "BBB", p, 20)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, hubRes.Ratio, 0.01)
	assert.InDelta(t, 1.0, hubRes.Intercept, 0.05)
	assert.Nil(t, hubRes.RSquared)
	assert.Greater(t, math.Abs(olsRes.Ratio-2), math.Abs(hubRes.Ratio-2),
		"huber must sit closer to the clean slope than ols")
}

func TestTheilSenExactOnCleanData(t *testing.T) {
	e := NewHedgeEstimator()
	res, err := e.Estimate(MethodTheilSen, "k", "AAA", "BBB", linearPair(15, 2, 1), 15)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Ratio, 1e-9)
	assert.InDelta(t, 1.0, res.Intercept, 1e-9)
	assert.Nil(t, res.RSquared)
}

func TestTheilSenMajorityWinsOverOutliers(t *testing.T) {
	e := NewHedgeEstimator()
	p := linearPair(20, 2, 1)
	p.A[5] = 200
	p.A[12] = -100

	res, err := e.Estimate(MethodTheilSen, "k", "AAA", "BBB", p, 20)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Ratio, 1e-9)
	assert.InDelta(t, 1.0, res.Intercept, 1e-9)
}

func TestKalmanConvergesAndPersists(t *testing.T) {
	e := NewHedgeEstimator()

	noise := lcgNoise(99)
	n := 300
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		b[i] = 100 + 10*math.Sin(float64(i)*0.1) + noise()*2
		a[i] = 2*b[i] + 5
	}
	p := alignedPair(a, b)

	res, err := e.Estimate(MethodKalman, "AAA/BBB@1m/300", "AAA", "BBB", p, 300)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Ratio, 0.1)
	assert.Nil(t, res.RSquared)

	// Re-running over the same window consumes no new observations and
	// returns the identical filter state.
	again, err := e.Estimate(MethodKalman, "AAA/BBB@1m/300", "AAA", "BBB", p, 300)
	require.NoError(t, err)
	assert.Equal(t, res.Ratio, again.Ratio)
	assert.Equal(t, res.Intercept, again.Intercept)
}

func TestKalmanBankResetStartsFresh(t *testing.T) {
	bank := NewKalmanBank()
	p := linearPair(20, 3, 0)

	r1, _, err := bank.Update("key", p)
	require.NoError(t, err)

	bank.Reset("key")
	r2, _, err := bank.Update("key", p)
	require.NoError(t, err)
	assert.Equal(t, r1, r2, "same data after reset reproduces the same state")
}

func TestKalmanReinitializesOnDisjointWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := &AlignedPair{}
	for i := 0; i < 20; i++ {
		b := float64(i + 1)
		later.Timestamps = append(later.Timestamps, base.Add(time.Duration(100+i)*time.Minute))
		later.A = append(later.A, 3*b)
		later.B = append(later.B, b)
	}

	fresh := NewKalmanBank()
	wantRatio, wantIntercept, err := fresh.Update("key", later)
	require.NoError(t, err)

	// The first window ends at base+19m; "later" starts at base+100m, so
	// the filter must restart instead of carrying stale state over the gap.
	bank := NewKalmanBank()
	_, _, err = bank.Update("key", linearPair(20, 2, 0))
	require.NoError(t, err)
	gotRatio, gotIntercept, err := bank.Update("key", later)
	require.NoError(t, err)

	assert.Equal(t, wantRatio, gotRatio)
	assert.Equal(t, wantIntercept, gotIntercept)
}

func TestKalmanNoNewPointsOnEmptyPair(t *testing.T) {
	bank := NewKalmanBank()
	_, _, err := bank.Update("key", &AlignedPair{})
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

// lcgNoise is a deterministic noise source in [-0.5, 0.5).
func lcgNoise(seed int64) func() float64 {
	x := seed
	return func() float64 {
		x = (1103515245*x + 12345) % (1 << 31)
		return float64(x)/float64(1<<31) - 0.5
	}
}
