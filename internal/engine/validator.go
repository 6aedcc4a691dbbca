package engine

import (
	"fmt"
	"time"
)

// Proposal is a reservation a user asks to create.
type Proposal struct {
	SeatID string
	UserID string
	Role   Role
	Range  TimeRange
}

// ValidationInput is everything ValidateReservation reads.  SeatReservations
// must hold all reservations of the proposed seat, including those that
// started before now.  UserReservations holds the requesting user's
// reservations on every seat; ended ones are ignored.
type ValidationInput struct {
	Proposal         Proposal
	Seat             Seat
	SeatReservations []Reservation
	UserReservations []Reservation
	Policy           Policy
	Now              time.Time
}

// ValidateReservation decides whether the proposal may be stored.  Checks
// run in a fixed order and the first failure is returned.  The result is
// only as fresh as the input snapshot; storage must re-check under a lock.
func ValidateReservation(in ValidationInput) Outcome {
	p := in.Policy
	p.MustValidate()
	r := in.Proposal.Range
	now := in.Now

	if !SameDay(r.Start, r.End, p) && !endsAtMidnight(r, p) {
		return Reject(ReasonCrossDayRange, "")
	}
	if !r.End.After(r.Start) {
		return Reject(ReasonInvalidRange, "")
	}
	if !r.Start.After(now) {
		return Reject(ReasonPastStart, "")
	}
	if !IsAlignedToGranularity(r.Start, p) || !IsAlignedToGranularity(r.End, p) {
		return Reject(ReasonMisalignedTime, fmt.Sprintf("unit %s", p.ReservationTimeUnit))
	}
	if !IsWithinDurationBounds(r, p) {
		return Reject(ReasonDurationOutOfBounds,
			fmt.Sprintf("min %s max %s", p.MinimumReservationDuration, p.MaximumReservationDuration))
	}
	if detail := businessHoursViolation(r, p); detail != "" {
		return Reject(ReasonOutsideBusinessHours, detail)
	}
	if !IsWithinAdvanceLimit(r, p, in.Proposal.Role, now) {
		return Reject(ReasonAdvanceLimitExceeded,
			fmt.Sprintf("%d days", p.AdvanceLimitDays(in.Proposal.Role)))
	}
	if !in.Seat.Available {
		return Reject(ReasonSeatDisabled, "")
	}
	for _, existing := range in.SeatReservations {
		if Overlaps(existing.EffectiveRange(now, p), r) {
			return Reject(ReasonSeatTimeConflict, existing.ID)
		}
	}
	for _, existing := range in.UserReservations {
		if blocksUser(existing, r, p, now) {
			return Reject(ReasonUserDoubleBooking, existing.ID)
		}
	}
	return Accept()
}

// endsAtMidnight reports whether r ends exactly at the midnight following
// its start day, which is where a "24:00" closing time lands.
func endsAtMidnight(r TimeRange, p Policy) bool {
	return r.End.Equal(Clock{Hour: 24}.On(r.Start.In(p.Location)))
}

// blocksUser reports whether a reservation the user already holds prevents
// booking r.  Once now is within the minimum duration of the existing
// reservation's end, the user may queue the next one.
func blocksUser(existing Reservation, r TimeRange, p Policy, now time.Time) bool {
	end := existing.EffectiveEnd(now, p)
	if !end.After(now) {
		return false
	}
	if !Overlaps(TimeRange{Start: existing.Begin, End: end}, r) {
		return false
	}
	return now.Before(end.Add(-p.MinimumReservationDuration))
}
