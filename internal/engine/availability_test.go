package engine

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAvailability_Window(t *testing.T) {
	p := testPolicy()
	now := at(3, 8, 0)
	window := span(at(3, 10, 0), at(3, 11, 0))
	seats := []Seat{{ID: "A01", Available: true}}

	tests := []struct {
		name         string
		reservations []Reservation
		want         SeatStatus
	}{
		{"no reservations", nil, StatusAvailable},
		{"single full cover", []Reservation{res("r1", "A01", "u1", at(3, 10, 0), at(3, 11, 0))}, StatusReserved},
		{"partial cover", []Reservation{res("r1", "A01", "u1", at(3, 10, 0), at(3, 10, 30))}, StatusPartiallyReserved},
		{"chain", []Reservation{
			res("r1", "A01", "u1", at(3, 10, 0), at(3, 10, 30)),
			res("r2", "A01", "u2", at(3, 10, 30), at(3, 11, 0)),
		}, StatusReserved},
		{"chain out of order", []Reservation{
			res("r2", "A01", "u2", at(3, 10, 30), at(3, 11, 0)),
			res("r1", "A01", "u1", at(3, 10, 0), at(3, 10, 30)),
		}, StatusReserved},
		{"gap", []Reservation{
			res("r1", "A01", "u1", at(3, 10, 0), at(3, 10, 20)),
			res("r2", "A01", "u2", at(3, 10, 40), at(3, 11, 0)),
		}, StatusPartiallyReserved},
		{"spans beyond window", []Reservation{res("r1", "A01", "u1", at(3, 9, 0), at(3, 12, 0))}, StatusReserved},
		{"touches window end only", []Reservation{res("r1", "A01", "u1", at(3, 11, 0), at(3, 12, 0))}, StatusAvailable},
		{"touches window start only", []Reservation{res("r1", "A01", "u1", at(3, 9, 0), at(3, 10, 0))}, StatusAvailable},
		{"other seat", []Reservation{res("r1", "B01", "u1", at(3, 10, 0), at(3, 11, 0))}, StatusAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAvailability(seats, tt.reservations, &window, p, now)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got["A01"])
		})
	}
}

func TestCalculateAvailability_OneEntryPerSeat(t *testing.T) {
	p := testPolicy()
	seats := []Seat{{ID: "A01", Available: true}, {ID: "A02", Available: false}, {ID: "A03", Available: true}}
	reservations := []Reservation{
		res("r1", "A03", "u1", at(3, 10, 0), at(3, 10, 30)),
		res("r2", "Z99", "u2", at(3, 10, 0), at(3, 11, 0)),
	}
	window := span(at(3, 10, 0), at(3, 11, 0))

	got := CalculateAvailability(seats, reservations, &window, p, at(3, 8, 0))
	assert.Equal(t, map[string]SeatStatus{
		"A01": StatusAvailable,
		"A02": StatusUnavailable,
		"A03": StatusPartiallyReserved,
	}, got)
}

func TestCalculateAvailability_DisabledSeatAlwaysUnavailable(t *testing.T) {
	p := testPolicy()
	now := at(3, 8, 0)
	window := span(at(3, 10, 0), at(3, 11, 0))
	seats := []Seat{{ID: "A01", Available: false}}

	sets := [][]Reservation{
		nil,
		{res("r1", "A01", "u1", at(3, 10, 0), at(3, 11, 0))},
		{res("r1", "A01", "u1", at(3, 10, 0), at(3, 10, 30))},
	}
	for _, rs := range sets {
		assert.Equal(t, StatusUnavailable, CalculateAvailability(seats, rs, &window, p, now)["A01"])
		assert.Equal(t, StatusUnavailable, CalculateAvailability(seats, rs, nil, p, now)["A01"])
	}
}

func TestCalculateAvailability_DefaultWindow(t *testing.T) {
	p := testPolicy()
	seats := []Seat{{ID: "A01", Available: true}}

	t.Run("before opening uses full day", func(t *testing.T) {
		rs := []Reservation{res("r1", "A01", "u1", at(3, 9, 0), at(3, 21, 0))}
		got := CalculateAvailability(seats, rs, nil, p, at(3, 7, 0))
		assert.Equal(t, StatusReserved, got["A01"])
	})

	t.Run("during the day starts at now", func(t *testing.T) {
		rs := []Reservation{res("r1", "A01", "u1", at(3, 12, 0), at(3, 21, 0))}
		got := CalculateAvailability(seats, rs, nil, p, at(3, 12, 0))
		assert.Equal(t, StatusReserved, got["A01"])
	})

	t.Run("ended reservation does not count", func(t *testing.T) {
		rs := []Reservation{res("r1", "A01", "u1", at(3, 9, 0), at(3, 12, 0))}
		got := CalculateAvailability(seats, rs, nil, p, at(3, 12, 0))
		assert.Equal(t, StatusAvailable, got["A01"])
	})

	t.Run("after closing everything is unavailable", func(t *testing.T) {
		got := CalculateAvailability(seats, nil, nil, p, at(3, 22, 0))
		assert.Equal(t, StatusUnavailable, got["A01"])
	})

	t.Run("weekend hours", func(t *testing.T) {
		w, open := DefaultWindow(p, at(1, 8, 0))
		require.True(t, open)
		assert.Equal(t, at(1, 10, 0), w.Start)
		assert.Equal(t, at(1, 17, 0), w.End)
	})
}

func TestCalculateAvailability_ClosedWindow(t *testing.T) {
	p := testPolicy()
	p.ClosedPeriods = []TimeRange{span(at(4, 9, 0), at(4, 21, 0))}
	seats := []Seat{{ID: "A01", Available: true}}
	now := at(3, 8, 0)

	night := span(at(3, 22, 0), at(3, 23, 0))
	assert.Equal(t, StatusUnavailable, CalculateAvailability(seats, nil, &night, p, now)["A01"])

	holiday := span(at(4, 10, 0), at(4, 11, 0))
	assert.Equal(t, StatusUnavailable, CalculateAvailability(seats, nil, &holiday, p, now)["A01"])

	edge := span(at(3, 20, 0), at(3, 22, 0))
	assert.Equal(t, StatusAvailable, CalculateAvailability(seats, nil, &edge, p, now)["A01"])
}

func TestCalculateAvailability_TemporaryLeaveFreesSeat(t *testing.T) {
	p := testPolicy()
	seats := []Seat{{ID: "A01", Available: true}}
	leave := at(3, 10, 30)
	r := res("r1", "A01", "u1", at(3, 10, 0), at(3, 14, 0))
	r.TemporaryLeaveAt = &leave
	window := span(at(3, 12, 0), at(3, 13, 0))

	assert.Equal(t, StatusReserved, CalculateAvailability(seats, []Reservation{r}, &window, p, at(3, 11, 0))["A01"])
	assert.Equal(t, StatusAvailable, CalculateAvailability(seats, []Reservation{r}, &window, p, at(3, 11, 45))["A01"])
}

func TestCalculateAvailability_Deterministic(t *testing.T) {
	p := testPolicy()
	seats := []Seat{{ID: "A01", Available: true}, {ID: "A02", Available: true}}
	rs := []Reservation{
		res("r1", "A01", "u1", at(3, 10, 0), at(3, 10, 30)),
		res("r2", "A02", "u2", at(3, 9, 0), at(3, 12, 0)),
	}
	window := span(at(3, 10, 0), at(3, 11, 0))

	first := CalculateAvailability(seats, rs, &window, p, at(3, 8, 0))
	second := CalculateAvailability(seats, rs, &window, p, at(3, 8, 0))
	assert.Equal(t, first, second)
}

// Adding a reservation never turns a reserved or partially reserved seat
// back into an available one.
func TestCalculateAvailability_CoverageIsMonotonic(t *testing.T) {
	p := testPolicy()
	now := at(3, 8, 0)
	window := span(at(3, 10, 0), at(3, 14, 0))
	seats := []Seat{{ID: "A01", Available: true}}
	rng := rand.New(rand.NewPCG(7, 11))

	randomRes := func() Reservation {
		startSlot := rng.IntN(24)
		length := 1 + rng.IntN(6)
		begin := at(3, 9, 0).Add(time.Duration(startSlot) * 30 * time.Minute)
		return res("r", "A01", "u", begin, begin.Add(time.Duration(length)*30*time.Minute))
	}

	rank := map[SeatStatus]int{StatusAvailable: 0, StatusPartiallyReserved: 1, StatusReserved: 2}
	for i := 0; i < 200; i++ {
		var rs []Reservation
		prev := StatusAvailable
		for j := 0; j < 5; j++ {
			rs = append(rs, randomRes())
			got := CalculateAvailability(seats, rs, &window, p, now)["A01"]
			require.GreaterOrEqual(t, rank[got], rank[prev], "iteration %d step %d", i, j)
			prev = got
		}
	}
}
