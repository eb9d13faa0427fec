package repository

import "time"

// Resolution is a bar bucket duration.
type Resolution string

const (
	Res1s Resolution = "1s"
	Res1m Resolution = "1m"
	Res5m Resolution = "5m"
)

// Resolutions returns every supported resolution, smallest first. One
// instrument feeds an independent bar series per resolution.
func Resolutions() []Resolution {
	return []Resolution{Res1s, Res1m, Res5m}
}

// IsValidResolution returns true if r is a supported resolution.
func IsValidResolution(r Resolution) bool {
	switch r {
	case Res1s, Res1m, Res5m:
		return true
	default:
		return false
	}
}

// DefaultResolution returns the default resolution.
func DefaultResolution() Resolution { return Res1m }

// NormalizeResolution converts a raw string to a valid resolution (or default).
func NormalizeResolution(s string) Resolution {
	if s == "" {
		return DefaultResolution()
	}
	r := Resolution(s)
	if IsValidResolution(r) {
		return r
	}
	return DefaultResolution()
}

// Duration returns the bucket duration of the resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Res1s:
		return time.Second
	case Res5m:
		return 5 * time.Minute
	default:
		return time.Minute
	}
}

// Bucket floors t to the resolution's bucket boundary.
func (r Resolution) Bucket(t time.Time) time.Time {
	return t.Truncate(r.Duration())
}
