// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/library-seat-reservation/internal/model"
)

// ReservationQueue is the durable queue every reservation event is routed to.
const ReservationQueue = "reservation.events"

// EventType names a reservation state transition.
type EventType string

const (
	EventCreated       EventType = "reservation.created"
	EventCancelled     EventType = "reservation.cancelled"
	EventTerminated    EventType = "reservation.terminated"
	EventCheckedIn     EventType = "reservation.checked_in"
	EventLeft          EventType = "reservation.temporary_leave"
	EventReturned      EventType = "reservation.returned"
	EventLeaveExpired  EventType = "reservation.leave_expired"
	EventCheckInMissed EventType = "reservation.checkin_missed"
)

// ReservationEvent carries enough of the reservation for downstream
// consumers to log or notify without querying the primary database.
type ReservationEvent struct {
	Type          EventType `json:"type"`
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	SeatID        string    `json:"seat_id"`
	BeginTime     string    `json:"begin_time"`
	EndTime       string    `json:"end_time"`
	Actor         string    `json:"actor,omitempty"`
	OccurredAt    string    `json:"occurred_at"`
}

// NewReservationEvent snapshots r.  actor is the user who triggered the
// transition; it is empty for sweeper transitions.
func NewReservationEvent(t EventType, r model.Reservation, actor string, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID,
		UserID:        r.UserID,
		SeatID:        r.SeatID,
		BeginTime:     r.BeginTime.UTC().Format(time.RFC3339),
		EndTime:       r.EndTime.UTC().Format(time.RFC3339),
		Actor:         actor,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}

// LogLine renders the event as one line of logs/reservation.log.
func (e ReservationEvent) LogLine() string {
	actor := e.Actor
	if actor == "" {
		actor = "system"
	}
	return fmt.Sprintf("[%s] %s | reservation_id=%s | user_id=%s | seat=%s | begin=%s | end=%s | actor=%s\n",
		e.OccurredAt, e.Type, e.ReservationID, e.UserID, e.SeatID, e.BeginTime, e.EndTime, actor)
}
