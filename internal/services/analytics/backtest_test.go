package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

func btPoints(spreads, zs []float64) []BacktestPoint {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]BacktestPoint, len(zs))
	for i := range zs {
		out[i] = BacktestPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Spread:    spreads[i],
			Z:         zs[i],
		}
	}
	return out
}

func TestBacktestShortThenLongCycle(t *testing.T) {
	points := btPoints(
		[]float64{0, 5, 5, 1, -5, 0},
		[]float64{0, 2.5, 2.5, 0.1, -2.5, 0},
	)

	res, err := Backtest(points, 2.0, 0.2)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, 2, res.TotalTrades)

	short := res.Trades[0]
	assert.Equal(t, models.TradeShort, short.Direction)
	assert.Equal(t, 1, short.EntryIndex)
	assert.Equal(t, 3, short.ExitIndex)
	assert.Equal(t, 2.5, short.EntryZ)
	assert.Equal(t, 0.1, short.ExitZ)
	assert.Equal(t, 4.0, short.PnL) // entered at spread 5, covered at 1

	long := res.Trades[1]
	assert.Equal(t, models.TradeLong, long.Direction)
	assert.Equal(t, 4, long.EntryIndex)
	assert.Equal(t, 5, long.ExitIndex)
	assert.Equal(t, 5.0, long.PnL) // entered at spread -5, closed at 0

	assert.Equal(t, 9.0, res.TotalPnL)
	assert.Equal(t, 2, res.WinningTrades)
	assert.Equal(t, 1.0, res.WinRate)
}

func TestBacktestHoldsThroughElevatedZ(t *testing.T) {
	// Once short, further extreme readings neither stack nor flip the
	// position; only the exit band closes it.
	points := btPoints(
		[]float64{0, 5, 8, 9, 1},
		[]float64{0, 2.5, 3.5, -3.0, 0.0},
	)
	res, err := Backtest(points, 2.0, 0.2)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, models.TradeShort, res.Trades[0].Direction)
	assert.Equal(t, 4, res.Trades[0].ExitIndex)
	assert.Equal(t, 4.0, res.Trades[0].PnL)
}

func TestBacktestOpenPositionAtEndIsDiscarded(t *testing.T) {
	points := btPoints(
		[]float64{0, 5, 6},
		[]float64{0, 2.5, 3.0},
	)
	res, err := Backtest(points, 2.0, 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.TotalTrades)
	assert.Equal(t, 0.0, res.WinRate)
}

func TestBacktestNoSignalsNoTrades(t *testing.T) {
	points := btPoints(
		[]float64{1, 2, 1, 2},
		[]float64{0.5, 1.0, -0.8, 0.3},
	)
	res, err := Backtest(points, 2.0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalTrades)
	assert.Equal(t, 0.0, res.TotalPnL)
	assert.Equal(t, 0.0, res.WinRate)
}

func TestBacktestLosingTradeCountsAgainstWinRate(t *testing.T) {
	// Short at spread 5, forced out at spread 9: a losing trade.
	points := btPoints(
		[]float64{0, 5, 9, -5, -1},
		[]float64{0, 2.5, 0.1, -2.5, 0.0},
	)
	res, err := Backtest(points, 2.0, 0.2)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, -4.0, res.Trades[0].PnL)
	assert.Equal(t, 4.0, res.Trades[1].PnL)
	assert.Equal(t, 1, res.WinningTrades)
	assert.Equal(t, 0.5, res.WinRate)
	assert.Equal(t, 0.0, res.TotalPnL)
}

func TestBacktestParameterValidation(t *testing.T) {
	points := btPoints([]float64{0}, []float64{0})

	_, err := Backtest(points, 0, 0.2)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))

	_, err = Backtest(points, 2.0, 2.5)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))

	_, err = Backtest(points, 2.0, -0.1)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}
