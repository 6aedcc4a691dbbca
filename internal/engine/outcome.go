package engine

import (
	"errors"
	"fmt"
)

// Reason names why a proposed reservation was rejected.
type Reason string

const (
	ReasonInvalidRange         Reason = "invalid_range"
	ReasonCrossDayRange        Reason = "cross_day_range"
	ReasonPastStart            Reason = "past_start"
	ReasonMisalignedTime       Reason = "misaligned_time"
	ReasonDurationOutOfBounds  Reason = "duration_out_of_bounds"
	ReasonOutsideBusinessHours Reason = "outside_business_hours"
	ReasonAdvanceLimitExceeded Reason = "advance_limit_exceeded"
	ReasonSeatDisabled         Reason = "seat_disabled"
	ReasonSeatTimeConflict     Reason = "seat_time_conflict"
	ReasonUserDoubleBooking    Reason = "user_double_booking"
)

// Outcome is the validator's verdict.  The zero value is not meaningful;
// build one with Accept or Reject.
type Outcome struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Accept returns an accepting outcome.
func Accept() Outcome { return Outcome{Accepted: true} }

// Reject returns a rejecting outcome with the given reason.
func Reject(reason Reason, detail string) Outcome {
	return Outcome{Reason: reason, Detail: detail}
}

// Err returns nil for an accepted outcome and a *Rejection otherwise, so
// callers that speak in errors can propagate a rejection unchanged.
func (o Outcome) Err() error {
	if o.Accepted {
		return nil
	}
	return &Rejection{Reason: o.Reason, Detail: o.Detail}
}

// Rejection is the error form of a rejecting Outcome.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("reservation rejected: %s", r.Reason)
	}
	return fmt.Sprintf("reservation rejected: %s (%s)", r.Reason, r.Detail)
}

// RejectionReason extracts the reason from err when it wraps a *Rejection.
func RejectionReason(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
