package analytics

import (
	"fmt"
	"math"
	"time"

	"PairPulse/internal/domain/models"
)

// BacktestPoint is one observation the replay consumes: the spread value
// and its rolling z-score at the same timestamp.
type BacktestPoint struct {
	Timestamp time.Time
	Spread    float64
	Z         float64
}

// Backtest replays a threshold mean-reversion strategy over the z-score
// series. A flat book enters short when z reaches +entryZ and long when
// z reaches -entryZ; an open position exits when |z| falls to exitZ or
// below. At most one transition happens per point, and a position still
// open at the end of the series is discarded rather than force-closed.
func Backtest(points []BacktestPoint, entryZ, exitZ float64) (*models.BacktestResult, error) {
	if entryZ <= 0 || exitZ < 0 || exitZ >= entryZ {
		return nil, fmt.Errorf("%w: entry_z %v / exit_z %v", models.ErrInvalidParameter, entryZ, exitZ)
	}

	res := &models.BacktestResult{
		EntryZ: entryZ,
		ExitZ:  exitZ,
	}

	var (
		inPosition bool
		entry      BacktestPoint
		entryIdx   int
		direction  models.TradeDirection
	)

	for i, p := range points {
		if !inPosition {
			switch {
			case p.Z >= entryZ:
				inPosition, direction, entry, entryIdx = true, models.TradeShort, p, i
			case p.Z <= -entryZ:
				inPosition, direction, entry, entryIdx = true, models.TradeLong, p, i
			}
			continue
		}

		if math.Abs(p.Z) > exitZ {
			continue
		}

		pnl := p.Spread - entry.Spread
		if direction == models.TradeShort {
			pnl = entry.Spread - p.Spread
		}
		res.Trades = append(res.Trades, models.TradeRecord{
			EntryTime:  entry.Timestamp,
			ExitTime:   p.Timestamp,
			EntryIndex: entryIdx,
			ExitIndex:  i,
			EntryZ:     entry.Z,
			ExitZ:      p.Z,
			Direction:  direction,
			PnL:        pnl,
		})
		res.TotalPnL += pnl
		if pnl > 0 {
			res.WinningTrades++
		}
		inPosition = false
	}

	res.TotalTrades = len(res.Trades)
	if res.TotalTrades > 0 {
		res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades)
	}
	return res, nil
}
