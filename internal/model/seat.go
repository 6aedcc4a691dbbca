package model

import (
	"time"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

// Seat describes a reading-room seat.  ID is the printed seat code (e.g.
// "A01").  Available is the administrative switch: a disabled seat shows as
// unavailable and cannot be booked regardless of its reservations.
//
// Fields:
//
//	ID        – seats.id, the seat code.
//	Available – seats.available.
//	OtherInfo – free text shown next to the seat (power outlet, lamp, ...).
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Seat struct {
	ID        string    `json:"id"`
	Available bool      `json:"available"`
	OtherInfo *string   `json:"other_info,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Engine converts the row into the shape the availability engine reads.
func (s Seat) Engine() engine.Seat {
	out := engine.Seat{ID: s.ID, Available: s.Available}
	if s.OtherInfo != nil {
		out.OtherInfo = *s.OtherInfo
	}
	return out
}

// EngineSeats converts a slice of rows.
func EngineSeats(seats []Seat) []engine.Seat {
	out := make([]engine.Seat, 0, len(seats))
	for _, s := range seats {
		out = append(out, s.Engine())
	}
	return out
}
