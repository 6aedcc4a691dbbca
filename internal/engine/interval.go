// Package engine decides seat availability and reservation validity.  It is
// pure: every function takes the seats, reservations, policy and current
// instant it needs as parameters and performs no I/O, so identical inputs
// always produce identical outputs.  Storage adapters translate their rows
// into the types declared here before calling in.
package engine

import (
	"slices"
	"time"
)

// TimeRange is a half-open interval [Start, End).  Callers must ensure
// Start <= End; the helpers in this file do not check it.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// Contains reports whether other lies entirely inside r.
func (r TimeRange) Contains(other TimeRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Overlaps reports whether a and b share any instant.  Ranges that only
// touch (a.End == b.Start) do not overlap, which keeps back-to-back
// reservations legal.
func Overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// IsContiguousCoverage reports whether ranges cover [windowStart, windowEnd)
// without a gap.  The input does not need to be sorted; ranges that start
// before the window or overlap one another are accepted as long as the
// covered frontier never has to jump forward.
func IsContiguousCoverage(ranges []TimeRange, windowStart, windowEnd time.Time) bool {
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b TimeRange) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	frontier := windowStart
	for _, r := range sorted {
		if !frontier.Before(windowEnd) {
			return true
		}
		if !r.End.After(frontier) {
			continue
		}
		if r.Start.After(frontier) {
			return false
		}
		frontier = r.End
	}
	return !frontier.Before(windowEnd)
}
