package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

func alignedPair(a, b []float64) *AlignedPair {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &AlignedPair{A: a, B: b}
	for i := range a {
		p.Timestamps = append(p.Timestamps, base.Add(time.Duration(i)*time.Minute))
	}
	return p
}

func TestAlignBarsExactJoin(t *testing.T) {
	a := barSeries("AAA", 1, 2, 3)
	b := barSeries("BBB", 10, 20, 30)

	p := AlignBars(a, b)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, []float64{1, 2, 3}, p.A)
	assert.Equal(t, []float64{10, 20, 30}, p.B)
}

func TestAlignBarsTakesLatestAtOrBefore(t *testing.T) {
	a := barSeries("AAA", 1, 2, 3)
	b := barSeries("BBB", 10, 20, 30)
	// Remove b's middle bar; a's middle point joins b's first.
	b = append(b[:1], b[2])

	p := AlignBars(a, b)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, []float64{10, 10, 30}, p.B)
}

func TestAlignBarsDropsUnmatchedHead(t *testing.T) {
	a := barSeries("AAA", 1, 2, 3)
	b := barSeries("BBB", 10, 20, 30)
	b = b[1:] // b starts one bucket later than a

	p := AlignBars(a, b)
	require.Equal(t, 2, p.Len())
	assert.Equal(t, []float64{2, 3}, p.A)
	assert.Equal(t, a[1].BucketStart, p.Timestamps[0])
}

func TestSpread(t *testing.T) {
	p := alignedPair([]float64{100, 102, 104}, []float64{50, 50, 50})
	sp := Spread(p, 2)
	require.Len(t, sp, 3)
	assert.Equal(t, 0.0, sp[0].Value)
	assert.Equal(t, 2.0, sp[1].Value)
	assert.Equal(t, 4.0, sp[2].Value)
}

func TestZScoresFlatSpreadIsZero(t *testing.T) {
	series := Spread(alignedPair([]float64{100, 100, 100, 100, 100}, []float64{50, 50, 50, 50, 50}), 2)

	zs, err := ZScores(series, 3)
	require.NoError(t, err)
	require.Len(t, zs, 3) // first window-1 points omitted
	for _, z := range zs {
		assert.Equal(t, 0.0, z.Value)
	}
}

func TestZScoresKnownWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	series := make([]models.SeriesPoint, 4)
	for i, v := range []float64{1, 2, 3, 4} {
		series[i] = models.SeriesPoint{Timestamp: base.Add(time.Duration(i) * time.Minute), Value: v}
	}

	zs, err := ZScores(series, 3)
	require.NoError(t, err)
	require.Len(t, zs, 2)
	// window [1,2,3]: mean 2, sample std 1, z = (3-2)/1
	assert.InDelta(t, 1.0, zs[0].Value, 1e-9)
	assert.InDelta(t, 1.0, zs[1].Value, 1e-9)
	assert.Equal(t, series[2].Timestamp, zs[0].Timestamp)
}

func TestZScoresErrors(t *testing.T) {
	series := Spread(alignedPair([]float64{1, 2}, []float64{1, 1}), 1)

	_, err := ZScores(series, 3)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	_, err = ZScores(series, 1)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestRollingCorrelation(t *testing.T) {
	p := alignedPair([]float64{1, 2, 3, 4, 5}, []float64{10, 20, 30, 40, 50})
	cs, err := RollingCorrelation(p, 3)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	for _, c := range cs {
		assert.InDelta(t, 1.0, c.Value, 1e-9)
	}

	inv := alignedPair([]float64{1, 2, 3, 4, 5}, []float64{50, 40, 30, 20, 10})
	cs, err = RollingCorrelation(inv, 3)
	require.NoError(t, err)
	for _, c := range cs {
		assert.InDelta(t, -1.0, c.Value, 1e-9)
	}
}

func TestRollingCorrelationSkipsZeroVarianceWindows(t *testing.T) {
	p := alignedPair([]float64{5, 5, 5, 6, 7}, []float64{1, 2, 3, 4, 5})
	cs, err := RollingCorrelation(p, 3)
	require.NoError(t, err)
	// The first window [5,5,5] has zero variance on one side.
	require.Len(t, cs, 2)
	assert.Equal(t, p.Timestamps[3], cs[0].Timestamp)
}

func TestBuildCorrelationMatrix(t *testing.T) {
	series := map[string][]models.Bar{
		"AAA": barSeries("AAA", 1, 2, 3, 4, 5),
		"BBB": barSeries("BBB", 2, 4, 6, 8, 10),
		"CCC": barSeries("CCC", 7, 7, 7, 7, 7), // zero variance
	}
	insts := []string{"AAA", "BBB", "CCC"}

	m, err := BuildCorrelationMatrix(insts, series, 5)
	require.NoError(t, err)
	assert.Equal(t, insts, m.Instruments)

	for _, inst := range insts {
		require.NotNil(t, m.Cells[inst][inst])
		assert.Equal(t, 1.0, *m.Cells[inst][inst])
	}

	require.NotNil(t, m.Cells["AAA"]["BBB"])
	assert.InDelta(t, 1.0, *m.Cells["AAA"]["BBB"], 1e-9)
	assert.Equal(t, m.Cells["AAA"]["BBB"], m.Cells["BBB"]["AAA"])

	assert.Nil(t, m.Cells["AAA"]["CCC"])
	assert.Nil(t, m.Cells["CCC"]["BBB"])
}

func TestBuildCorrelationMatrixSkipsEmptyInstrument(t *testing.T) {
	series := map[string][]models.Bar{
		"AAA": barSeries("AAA", 1, 2, 3),
		"ZZZ": nil,
	}
	m, err := BuildCorrelationMatrix([]string{"AAA", "ZZZ"}, series, 3)
	require.NoError(t, err)
	assert.Nil(t, m.Cells["ZZZ"]["ZZZ"])
	assert.Nil(t, m.Cells["AAA"]["ZZZ"])
}
