// Package aggregator turns the tick stream into OHLCV bar series, one
// independent series per (instrument, resolution).
package aggregator

import (
	"sort"
	"sync"
	"time"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
)

// BarSink receives every bar as it closes. Sinks run on the ingestion
// path; keep them cheap or buffer internally.
type BarSink func(*models.Bar)

type key struct {
	instrument string
	res        domrepo.Resolution
}

// state is the per-key bar machine: no bar -> open -> closed (-> new open).
type state struct {
	mu         sync.RWMutex
	open       *models.Bar
	closed     []models.Bar
	lastClosed time.Time // newest closed bucket; survives Flush setting open to nil
}

// Aggregator maintains one open bar per (instrument, resolution) and an
// in-memory history of closed bars. Idle buckets are skipped, not emitted
// as empty bars, at every resolution.
type Aggregator struct {
	mu          sync.RWMutex
	states      map[key]*state
	resolutions []domrepo.Resolution
	sinks       []BarSink
	maxBars     int
	droppedLate func(instrument string)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithResolutions overrides the default resolution set.
func WithResolutions(rs ...domrepo.Resolution) Option {
	return func(a *Aggregator) {
		if len(rs) > 0 {
			a.resolutions = rs
		}
	}
}

// WithMaxBars caps retained closed bars per (instrument, resolution).
func WithMaxBars(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxBars = n
		}
	}
}

// WithLateTickHook registers a callback for ticks older than the open
// bucket, which are dropped from live aggregation.
func WithLateTickHook(fn func(instrument string)) Option {
	return func(a *Aggregator) { a.droppedLate = fn }
}

// New creates an Aggregator for the supported resolutions.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		states:      make(map[key]*state),
		resolutions: domrepo.Resolutions(),
		maxBars:     10000,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddSink registers a closed-bar sink. Wire before ingestion starts.
func (a *Aggregator) AddSink(fn BarSink) {
	a.sinks = append(a.sinks, fn)
}

// OnTick advances every resolution's bar machine with one tick. Ticks that
// fall before the currently open bucket cannot mutate closed bars and are
// dropped from the live series; the tick store still retains them for
// recomputation.
func (a *Aggregator) OnTick(t *models.Tick) {
	for _, res := range a.resolutions {
		a.apply(t, res)
	}
}

func (a *Aggregator) apply(t *models.Tick, res domrepo.Resolution) {
	st := a.stateFor(t.Instrument, res)
	bucket := res.Bucket(t.Timestamp)

	var emit *models.Bar

	st.mu.Lock()
	if !st.lastClosed.IsZero() && !bucket.After(st.lastClosed) {
		// The bucket is already closed. Without this guard a tick arriving
		// after Flush would reopen it and close it a second time.
		st.mu.Unlock()
		if a.droppedLate != nil {
			a.droppedLate(t.Instrument)
		}
		return
	}
	switch {
	case st.open == nil:
		st.open = newBar(t, string(res), bucket)
	case bucket.Equal(st.open.BucketStart):
		updateBar(st.open, t)
	case bucket.After(st.open.BucketStart):
		done := *st.open
		st.closed = append(st.closed, done)
		if len(st.closed) > a.maxBars {
			drop := len(st.closed) - a.maxBars
			st.closed = append(st.closed[:0:0], st.closed[drop:]...)
		}
		st.lastClosed = done.BucketStart
		st.open = newBar(t, string(res), bucket)
		emit = &done
	default:
		// late tick beyond a closed bucket boundary
		st.mu.Unlock()
		if a.droppedLate != nil {
			a.droppedLate(t.Instrument)
		}
		return
	}
	st.mu.Unlock()

	if emit != nil {
		a.emit(emit)
	}
}

// Flush closes every open bar whose bucket has fully elapsed at the given
// clock time. Called on a timer so idle instruments still close their
// final bar.
func (a *Aggregator) Flush(now time.Time) {
	a.mu.RLock()
	keys := make([]key, 0, len(a.states))
	for k := range a.states {
		keys = append(keys, k)
	}
	a.mu.RUnlock()

	for _, k := range keys {
		st := a.stateFor(k.instrument, k.res)
		var emit *models.Bar
		st.mu.Lock()
		if st.open != nil && !now.Before(st.open.BucketStart.Add(k.res.Duration())) {
			done := *st.open
			st.closed = append(st.closed, done)
			if len(st.closed) > a.maxBars {
				drop := len(st.closed) - a.maxBars
				st.closed = append(st.closed[:0:0], st.closed[drop:]...)
			}
			st.lastClosed = done.BucketStart
			st.open = nil
			emit = &done
		}
		st.mu.Unlock()
		if emit != nil {
			a.emit(emit)
		}
	}
}

// Bars returns the bar series for (instrument, resolution) within
// [from, to], ascending, including a snapshot of the still-open bar when
// it falls in range. limit 0 means no limit; otherwise the most recent
// bars win.
func (a *Aggregator) Bars(instrument string, res domrepo.Resolution, from, to time.Time, limit int) []models.Bar {
	st := a.lookup(instrument, res)
	if st == nil {
		return nil
	}

	st.mu.RLock()
	bars := make([]models.Bar, len(st.closed))
	copy(bars, st.closed)
	if st.open != nil {
		bars = append(bars, *st.open)
	}
	st.mu.RUnlock()

	lo := 0
	if !from.IsZero() {
		lo = sort.Search(len(bars), func(i int) bool {
			return !bars[i].BucketStart.Before(from)
		})
	}
	hi := len(bars)
	if !to.IsZero() {
		hi = sort.Search(len(bars), func(i int) bool {
			return bars[i].BucketStart.After(to)
		})
	}
	if lo >= hi {
		return nil
	}
	bars = bars[lo:hi]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars
}

// LastNClosed returns the most recent n closed bars, ascending. The open
// bar is excluded: windowed analytics only consume immutable data. Fails
// with models.ErrInsufficientData when fewer than n closed bars exist.
func (a *Aggregator) LastNClosed(instrument string, res domrepo.Resolution, n int) ([]models.Bar, error) {
	st := a.lookup(instrument, res)
	if st == nil {
		return nil, models.ErrNotFound
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	if len(st.closed) < n {
		return nil, models.ErrInsufficientData
	}
	out := make([]models.Bar, n)
	copy(out, st.closed[len(st.closed)-n:])
	return out, nil
}

// ClosedCount reports how many closed bars exist for the key.
func (a *Aggregator) ClosedCount(instrument string, res domrepo.Resolution) int {
	st := a.lookup(instrument, res)
	if st == nil {
		return 0
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.closed)
}

func (a *Aggregator) emit(b *models.Bar) {
	for _, fn := range a.sinks {
		fn(b)
	}
}

func (a *Aggregator) stateFor(instrument string, res domrepo.Resolution) *state {
	k := key{instrument: instrument, res: res}
	a.mu.RLock()
	st := a.states[k]
	a.mu.RUnlock()
	if st != nil {
		return st
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if st = a.states[k]; st == nil {
		st = &state{}
		a.states[k] = st
	}
	return st
}

func (a *Aggregator) lookup(instrument string, res domrepo.Resolution) *state {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.states[key{instrument: instrument, res: res}]
}

func newBar(t *models.Tick, res string, bucket time.Time) *models.Bar {
	return &models.Bar{
		Instrument:  t.Instrument,
		Resolution:  res,
		BucketStart: bucket,
		Open:        t.Price,
		High:        t.Price,
		Low:         t.Price,
		Close:       t.Price,
		Volume:      t.Quantity,
	}
}

func updateBar(b *models.Bar, t *models.Tick) {
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Volume += t.Quantity
}
