package models

import "time"

// PriceStats are windowed descriptive statistics over a bar close series.
// Std is the sample standard deviation (n-1); with a single point it is 0.
// ChangePct is nil when the first value in the window is zero.
type PriceStats struct {
	Instrument string
	Resolution string
	Window     int
	Mean       float64
	Std        float64
	Min        float64
	Max        float64
	Median     float64
	Current    float64
	Change     float64
	ChangePct  *float64
}

// SeriesPoint is one timestamped value of a derived series (spread,
// z-score, rolling correlation).
type SeriesPoint struct {
	Timestamp time.Time
	Value     float64
}

// HedgeRatioResult is the output of one estimator run. RSquared is nil for
// the robust and Kalman methods, where it is not well-defined.
type HedgeRatioResult struct {
	InstrumentA string
	InstrumentB string
	Ratio       float64
	Intercept   float64
	RSquared    *float64
	Method      string
	WindowSize  int
}

// StationarityResult is the outcome of an augmented Dickey-Fuller test on
// a spread series. CriticalValues maps significance level ("1%", "5%",
// "10%") to the tabulated statistic.
type StationarityResult struct {
	Statistic      float64
	PValue         float64
	CriticalValues map[string]float64
	IsStationary   bool
	LagsUsed       int
	NObs           int
}

// TradeDirection of a backtest position on the spread.
type TradeDirection string

const (
	TradeLong  TradeDirection = "long"
	TradeShort TradeDirection = "short"
)

// TradeRecord is one completed Flat -> position -> Flat cycle.
type TradeRecord struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryIndex int
	ExitIndex  int
	EntryZ     float64
	ExitZ      float64
	Direction  TradeDirection
	PnL        float64
}

// BacktestResult aggregates a full mean-reversion replay. Produced whole,
// never mutated in place. WinRate is 0 when there are no trades.
type BacktestResult struct {
	InstrumentA   string
	InstrumentB   string
	EntryZ        float64
	ExitZ         float64
	Window        int
	Trades        []TradeRecord
	TotalTrades   int
	TotalPnL      float64
	WinningTrades int
	WinRate       float64
}

// CorrelationMatrix holds pairwise trailing-window Pearson correlations.
// The matrix is symmetric with 1.0 on the diagonal; a nil cell means the
// pair had insufficient overlapping data or zero variance.
type CorrelationMatrix struct {
	Instruments []string
	Window      int
	Cells       map[string]map[string]*float64
}

// LiquidityStats are volume-derived metrics over a bar window. VWAP falls
// back to the mean close when total volume is zero.
type LiquidityStats struct {
	Instrument    string
	Resolution    string
	AvgVolume     float64
	TotalVolume   float64
	VolumeStd     float64
	VWAP          float64
	CurrentVolume float64
}
