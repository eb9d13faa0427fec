package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"PairPulse/internal/domain/models"
)

// adfMinObs is the smallest series the test accepts.
const adfMinObs = 15

// MacKinnon response surface coefficients for the constant-only case,
// tau(level) = b0 + b1/nobs + b2/nobs^2.
var adfCritSurface = map[string][3]float64{
	"1%":  {-3.43035, -6.5393, -16.786},
	"5%":  {-2.86154, -2.8903, -4.234},
	"10%": {-2.56677, -1.5384, -2.809},
}

// Asymptotic quantiles of the Dickey-Fuller tau distribution with
// constant, used for p-value interpolation.
var adfTauQuantiles = []struct {
	tau float64
	p   float64
}{
	{-4.24, 0.001},
	{-3.43, 0.010},
	{-3.12, 0.025},
	{-2.86, 0.050},
	{-2.57, 0.100},
	{-2.07, 0.250},
	{-1.57, 0.500},
	{-0.94, 0.750},
	{-0.44, 0.900},
	{-0.07, 0.950},
	{0.23, 0.975},
	{0.60, 0.990},
}

// ADFTest runs an augmented Dickey-Fuller unit root test with constant
// on the series. The lag order is chosen by AIC over 0..maxlag, with
// maxlag from the Schwert rule 12*(n/100)^0.25, every candidate fitted
// on the same trailing sample. IsStationary reports rejection at the 5%
// level.
func ADFTest(values []float64) (*models.StationarityResult, error) {
	n := len(values)
	if n < adfMinObs {
		return nil, fmt.Errorf("adf: need %d observations, have %d: %w", adfMinObs, n, models.ErrInsufficientData)
	}
	if !isFiniteAll(values) {
		return nil, fmt.Errorf("adf: non-finite value in series: %w", models.ErrInsufficientData)
	}
	if sampleStd(values) == 0 {
		return nil, fmt.Errorf("adf: constant series: %w", models.ErrInsufficientData)
	}

	maxlag := schwertLag(n)
	// Keep enough residual degrees of freedom at the largest candidate.
	for maxlag > 0 && n-1-maxlag < maxlag+7 {
		maxlag--
	}

	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = values[i] - values[i-1]
	}
	nobs := len(diffs) - maxlag

	bestStat := 0.0
	bestLags := -1
	bestAIC := math.MaxFloat64
	for p := 0; p <= maxlag; p++ {
		stat, rss, err := adfRegression(values, diffs, maxlag, p)
		if err != nil {
			continue
		}
		k := 2 + p
		aic := float64(nobs)*math.Log(rss/float64(nobs)) + 2*float64(k)
		if aic < bestAIC {
			bestAIC = aic
			bestStat = stat
			bestLags = p
		}
	}
	if bestLags < 0 {
		return nil, fmt.Errorf("adf: degenerate regression: %w", models.ErrInsufficientData)
	}

	crit := make(map[string]float64, len(adfCritSurface))
	for level, c := range adfCritSurface {
		fn := float64(nobs)
		crit[level] = c[0] + c[1]/fn + c[2]/(fn*fn)
	}

	pv := adfPValue(bestStat)
	return &models.StationarityResult{
		Statistic:      bestStat,
		PValue:         pv,
		CriticalValues: crit,
		IsStationary:   pv < 0.05,
		LagsUsed:       bestLags,
		NObs:           nobs,
	}, nil
}

// schwertLag is the fixed-order rule floor(12*(n/100)^0.25).
func schwertLag(n int) int {
	return int(math.Floor(12 * math.Pow(float64(n)/100, 0.25)))
}

// adfRegression fits dy_t = a + g*y_{t-1} + sum phi_i*dy_{t-i} + e with
// p lagged differences on the common sample starting at maxlag, and
// returns the t-statistic of g plus the residual sum of squares.
func adfRegression(values, diffs []float64, maxlag, p int) (tstat, rss float64, err error) {
	nobs := len(diffs) - maxlag
	k := 2 + p
	if nobs <= k {
		return 0, 0, fmt.Errorf("adf: %d observations for %d regressors: %w", nobs, k, models.ErrInsufficientData)
	}

	x := mat.NewDense(nobs, k, nil)
	y := mat.NewVecDense(nobs, nil)
	for r := 0; r < nobs; r++ {
		t := maxlag + r
		y.SetVec(r, diffs[t])
		x.Set(r, 0, 1)
		x.Set(r, 1, values[t])
		for i := 1; i <= p; i++ {
			x.Set(r, 1+i, diffs[t-i])
		}
	}

	var beta mat.Dense
	if err := beta.Solve(x, y); err != nil {
		return 0, 0, fmt.Errorf("adf: singular design matrix: %w", models.ErrInsufficientData)
	}

	var fitted mat.Dense
	fitted.Mul(x, &beta)
	for r := 0; r < nobs; r++ {
		e := y.AtVec(r) - fitted.At(r, 0)
		rss += e * e
	}
	if rss == 0 {
		return 0, 0, fmt.Errorf("adf: perfect fit: %w", models.ErrInsufficientData)
	}
	sigma2 := rss / float64(nobs-k)

	var xtx, xtxInv mat.Dense
	xtx.Mul(x.T(), x)
	if err := xtxInv.Inverse(&xtx); err != nil {
		return 0, 0, fmt.Errorf("adf: singular design matrix: %w", models.ErrInsufficientData)
	}

	se := math.Sqrt(sigma2 * xtxInv.At(1, 1))
	if se == 0 {
		return 0, 0, fmt.Errorf("adf: degenerate regression: %w", models.ErrInsufficientData)
	}
	return beta.At(1, 0) / se, rss, nil
}

// adfPValue interpolates the tau quantile table, clamped at the ends.
func adfPValue(stat float64) float64 {
	q := adfTauQuantiles
	if stat <= q[0].tau {
		return q[0].p
	}
	if stat >= q[len(q)-1].tau {
		return q[len(q)-1].p
	}
	for i := 1; i < len(q); i++ {
		if stat <= q[i].tau {
			frac := (stat - q[i-1].tau) / (q[i].tau - q[i-1].tau)
			return q[i-1].p + frac*(q[i].p-q[i-1].p)
		}
	}
	return q[len(q)-1].p
}
