// Package tickstore holds the append-only ordered tick series per
// instrument. It is the source of truth every downstream aggregate is
// recomputable from.
package tickstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"PairPulse/internal/domain/models"
)

// ErrExpired marks a tick older than the retention horizon.
var ErrExpired = errors.New("tick older than retention horizon")

// Sink receives every successfully appended tick, in append order.
// Appends run on a single ingestion goroutine, so sinks are called
// sequentially per store.
type Sink func(*models.Tick)

type series struct {
	mu    sync.RWMutex
	ticks []*models.Tick
}

// Store is the per-instrument ordered tick store. One writer (the
// ingestion path), many concurrent readers.
type Store struct {
	mu       sync.RWMutex
	series   map[string]*series
	sinks    []Sink
	maxTicks int
	maxAge   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithMaxTicks caps the number of retained ticks per instrument.
func WithMaxTicks(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTicks = n
		}
	}
}

// WithRetention sets the retention horizon; ticks older than the newest
// tick minus this horizon are evicted, and late arrivals beyond it are
// rejected with ErrExpired.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		series:   make(map[string]*series),
		maxTicks: 100000,
		maxAge:   24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSink registers a notification sink for appended ticks. Not safe to
// call concurrently with Append; wire sinks before ingestion starts.
func (s *Store) AddSink(fn Sink) {
	s.sinks = append(s.sinks, fn)
}

// Append inserts a tick in timestamp order for its instrument. Exact
// duplicates (instrument, timestamp, price, quantity) are idempotent
// no-ops. Late ticks are inserted in sequence unless older than the
// retention horizon.
func (s *Store) Append(t *models.Tick) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	sr := s.seriesFor(t.Instrument, true)

	sr.mu.Lock()
	n := len(sr.ticks)
	if n > 0 {
		newest := sr.ticks[n-1].Timestamp
		if s.maxAge > 0 && t.Timestamp.Before(newest.Add(-s.maxAge)) {
			sr.mu.Unlock()
			return fmt.Errorf("append %s at %s: %w", t.Instrument, t.Timestamp, ErrExpired)
		}
	}

	// Insertion point: after all ticks with timestamp <= t.Timestamp.
	idx := sort.Search(n, func(i int) bool {
		return sr.ticks[i].Timestamp.After(t.Timestamp)
	})
	for i := idx - 1; i >= 0 && sr.ticks[i].Timestamp.Equal(t.Timestamp); i-- {
		if sr.ticks[i].Equal(t) {
			sr.mu.Unlock()
			return nil // duplicate
		}
	}

	if idx == n {
		sr.ticks = append(sr.ticks, t)
	} else {
		sr.ticks = append(sr.ticks, nil)
		copy(sr.ticks[idx+1:], sr.ticks[idx:])
		sr.ticks[idx] = t
	}
	s.evictLocked(sr)
	sr.mu.Unlock()

	for _, fn := range s.sinks {
		fn(t)
	}
	return nil
}

// Range returns ticks for instrument with timestamps in [from, to],
// ascending, at most limit (0 means no limit). Fails with
// models.ErrNotFound if the instrument was never seen.
func (s *Store) Range(instrument string, from, to time.Time, limit int) ([]*models.Tick, error) {
	sr := s.seriesFor(instrument, false)
	if sr == nil {
		return nil, fmt.Errorf("instrument %q: %w", instrument, models.ErrNotFound)
	}

	sr.mu.RLock()
	defer sr.mu.RUnlock()

	lo := 0
	if !from.IsZero() {
		lo = sort.Search(len(sr.ticks), func(i int) bool {
			return !sr.ticks[i].Timestamp.Before(from)
		})
	}
	hi := len(sr.ticks)
	if !to.IsZero() {
		hi = sort.Search(len(sr.ticks), func(i int) bool {
			return sr.ticks[i].Timestamp.After(to)
		})
	}
	if lo >= hi {
		return nil, nil
	}
	if limit > 0 && hi-lo > limit {
		lo = hi - limit // most recent ticks win, ascending order kept
	}
	out := make([]*models.Tick, hi-lo)
	copy(out, sr.ticks[lo:hi])
	return out, nil
}

// Len returns the number of retained ticks for instrument (0 if unknown).
func (s *Store) Len(instrument string) int {
	sr := s.seriesFor(instrument, false)
	if sr == nil {
		return 0
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.ticks)
}

// Instruments lists every instrument the store has seen, sorted.
func (s *Store) Instruments() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.series))
	for k := range s.series {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *Store) seriesFor(instrument string, create bool) *series {
	s.mu.RLock()
	sr := s.series[instrument]
	s.mu.RUnlock()
	if sr != nil || !create {
		return sr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr = s.series[instrument]; sr == nil {
		sr = &series{}
		s.series[instrument] = sr
	}
	return sr
}

// evictLocked trims by count and age; caller holds sr.mu.
func (s *Store) evictLocked(sr *series) {
	if s.maxTicks > 0 && len(sr.ticks) > s.maxTicks {
		drop := len(sr.ticks) - s.maxTicks
		sr.ticks = append(sr.ticks[:0:0], sr.ticks[drop:]...)
	}
	if s.maxAge > 0 && len(sr.ticks) > 0 {
		horizon := sr.ticks[len(sr.ticks)-1].Timestamp.Add(-s.maxAge)
		idx := sort.Search(len(sr.ticks), func(i int) bool {
			return !sr.ticks[i].Timestamp.Before(horizon)
		})
		if idx > 0 {
			sr.ticks = append(sr.ticks[:0:0], sr.ticks[idx:]...)
		}
	}
}
