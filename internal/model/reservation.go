package model

import (
	"time"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

// Reservation binds one seat to one user for [BeginTime, EndTime).
//
// Lifecycle as stored:
//   - cancelled before it starts: the row is deleted
//   - terminated early: EndTime is moved to the termination instant
//   - user steps out: TemporaryLeaveTime is set; returning clears it
//   - user stays away past the leave deadline: the sweeper moves EndTime to
//     TemporaryLeaveTime + deadline
//   - user never checks in: the sweeper moves EndTime to the check-in
//     deadline and records a violation
type Reservation struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	SeatID             string     `json:"seat_id"`
	BeginTime          time.Time  `json:"begin_time"`
	EndTime            time.Time  `json:"end_time"`
	CheckInTime        *time.Time `json:"check_in_time,omitempty"`
	TemporaryLeaveTime *time.Time `json:"temporary_leave_time,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Engine converts the row into the engine's reservation shape.
func (r Reservation) Engine() engine.Reservation {
	return engine.Reservation{
		ID:               r.ID,
		SeatID:           r.SeatID,
		UserID:           r.UserID,
		Begin:            r.BeginTime,
		End:              r.EndTime,
		CheckInAt:        r.CheckInTime,
		TemporaryLeaveAt: r.TemporaryLeaveTime,
	}
}

// EngineReservations converts a slice of rows.
func EngineReservations(rs []Reservation) []engine.Reservation {
	out := make([]engine.Reservation, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Engine())
	}
	return out
}

// ReservationWithUser is a reservation joined with the booking user, used by
// admin listings and seat detail views.
type ReservationWithUser struct {
	Reservation
	User *UserSummary `json:"user,omitempty"`
}

// ReservationFilter narrows the admin reservation listing.  Zero values
// mean "no constraint".
type ReservationFilter struct {
	UserID         string
	UserRole       string
	SeatID         string
	BeginTimeStart *time.Time
	BeginTimeEnd   *time.Time
	EndTimeStart   *time.Time
	EndTimeEnd     *time.Time
	Limit          int
	Offset         int
}
