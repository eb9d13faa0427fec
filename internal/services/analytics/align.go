package analytics

import (
	"fmt"
	"time"

	"PairPulse/internal/domain/models"
)

// AlignedPair is the timestamp-joined close series of two instruments.
// Slices share indices; Timestamps carry the left instrument's buckets.
type AlignedPair struct {
	Timestamps []time.Time
	A          []float64
	B          []float64
}

// AlignBars joins two bar series on time: for every bar of a, it takes
// the latest bar of b whose bucket starts at or before a's bucket. Bars
// of a with no such counterpart are dropped. Both inputs must be
// ascending, which the aggregator guarantees.
func AlignBars(a, b []models.Bar) *AlignedPair {
	out := &AlignedPair{}
	j := 0
	for i := range a {
		for j < len(b) && !b[j].BucketStart.After(a[i].BucketStart) {
			j++
		}
		if j == 0 {
			continue // no b bar at or before this bucket yet
		}
		out.Timestamps = append(out.Timestamps, a[i].BucketStart)
		out.A = append(out.A, a[i].Close)
		out.B = append(out.B, b[j-1].Close)
	}
	return out
}

// Len returns the number of joined points.
func (p *AlignedPair) Len() int { return len(p.Timestamps) }

// Tail trims the pair to its most recent n points.
func (p *AlignedPair) Tail(n int) *AlignedPair {
	if n <= 0 || p.Len() <= n {
		return p
	}
	off := p.Len() - n
	return &AlignedPair{
		Timestamps: p.Timestamps[off:],
		A:          p.A[off:],
		B:          p.B[off:],
	}
}

// requirePoints fails with ErrInsufficientData when the pair is shorter
// than n.
func (p *AlignedPair) requirePoints(n int) error {
	if p.Len() < n {
		return fmt.Errorf("need %d aligned points, have %d: %w", n, p.Len(), models.ErrInsufficientData)
	}
	return nil
}
