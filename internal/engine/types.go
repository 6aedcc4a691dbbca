package engine

import "time"

// Role is the booking role of a user.  It selects the advance-booking
// limit applied by the validator.
type Role string

const (
	RoleStudent  Role = "student"
	RoleOutsider Role = "outsider"
)

// Valid reports whether r is a known booking role.
func (r Role) Valid() bool { return r == RoleStudent || r == RoleOutsider }

// SeatStatus is the derived display status of a seat for a query window.
type SeatStatus string

const (
	StatusAvailable         SeatStatus = "available"
	StatusReserved          SeatStatus = "reserved"
	StatusPartiallyReserved SeatStatus = "partiallyReserved"
	StatusUnavailable       SeatStatus = "unavailable"
)

// Seat is a reservable seat.  Available is the administrative switch; the
// engine only reads it.
type Seat struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
	OtherInfo string `json:"other_info,omitempty"`
}

// Reservation binds one seat to one user for [Begin, End).  A reservation
// terminated early already carries the shortened End.
type Reservation struct {
	ID               string     `json:"id"`
	SeatID           string     `json:"seat_id"`
	UserID           string     `json:"user_id"`
	Begin            time.Time  `json:"begin_time"`
	End              time.Time  `json:"end_time"`
	CheckInAt        *time.Time `json:"check_in_time,omitempty"`
	TemporaryLeaveAt *time.Time `json:"temporary_leave_time,omitempty"`
}

// Range returns the stored [Begin, End) interval.
func (r Reservation) Range() TimeRange { return TimeRange{Start: r.Begin, End: r.End} }

// EffectiveEnd returns the instant the reservation really ends as seen at
// now.  A user on temporary leave who has not returned within the policy's
// leave deadline forfeits the rest of the reservation: it ends at
// leave + deadline.
func (r Reservation) EffectiveEnd(now time.Time, p Policy) time.Time {
	if r.TemporaryLeaveAt == nil || p.TemporaryLeaveDeadline <= 0 {
		return r.End
	}
	cutoff := r.TemporaryLeaveAt.Add(p.TemporaryLeaveDeadline)
	if now.Before(cutoff) || !cutoff.Before(r.End) {
		return r.End
	}
	if cutoff.Before(r.Begin) {
		return r.Begin
	}
	return cutoff
}

// EffectiveRange is Range with EffectiveEnd applied.
func (r Reservation) EffectiveRange(now time.Time, p Policy) TimeRange {
	return TimeRange{Start: r.Begin, End: r.EffectiveEnd(now, p)}
}

// IsPending reports whether the reservation has not yet ended at now.
func (r Reservation) IsPending(now time.Time, p Policy) bool {
	return r.EffectiveEnd(now, p).After(now)
}
