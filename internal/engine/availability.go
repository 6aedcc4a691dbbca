package engine

import "time"

// DefaultWindow returns the window used when the caller does not supply
// one: from now (or opening time, if later) until today's closing time.
// The second result is false once now has reached closing time.
func DefaultWindow(p Policy, now time.Time) (TimeRange, bool) {
	hours := OpeningHoursFor(now, p)
	if !now.Before(hours.End) {
		return TimeRange{Start: now, End: now}, false
	}
	start := now
	if start.Before(hours.Start) {
		start = hours.Start
	}
	return TimeRange{Start: start, End: hours.End}, true
}

// windowClosed reports whether an explicit window lies wholly outside the
// opening hours of its start day or wholly inside a closed period.
func windowClosed(w TimeRange, p Policy) bool {
	hours := OpeningHoursFor(w.Start, p)
	if !Overlaps(w, hours) {
		return true
	}
	for _, cp := range p.ClosedPeriods {
		if cp.Contains(w) {
			return true
		}
	}
	return false
}

// CalculateAvailability returns the status of every seat for window.  A
// nil window means DefaultWindow.  reservations may contain entries for
// any seat and outside the window; only effective ranges overlapping the
// window count.  The result holds exactly one entry per seat.
func CalculateAvailability(seats []Seat, reservations []Reservation, window *TimeRange, p Policy, now time.Time) map[string]SeatStatus {
	p.MustValidate()

	var (
		w      TimeRange
		closed bool
	)
	if window == nil {
		var open bool
		w, open = DefaultWindow(p, now)
		closed = !open
	} else {
		w = *window
		closed = windowClosed(w, p)
	}

	coverage := make(map[string][]TimeRange)
	if !closed {
		for _, r := range reservations {
			er := r.EffectiveRange(now, p)
			if Overlaps(er, w) {
				coverage[r.SeatID] = append(coverage[r.SeatID], er)
			}
		}
	}

	out := make(map[string]SeatStatus, len(seats))
	for _, s := range seats {
		out[s.ID] = seatStatus(s, coverage[s.ID], w, closed)
	}
	return out
}

func seatStatus(s Seat, ranges []TimeRange, w TimeRange, closed bool) SeatStatus {
	switch {
	case !s.Available:
		return StatusUnavailable
	case closed:
		return StatusUnavailable
	case len(ranges) == 0:
		return StatusAvailable
	case IsContiguousCoverage(ranges, w.Start, w.End):
		return StatusReserved
	default:
		return StatusPartiallyReserved
	}
}
