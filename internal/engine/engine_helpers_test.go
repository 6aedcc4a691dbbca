package engine

import "time"

var testLoc = time.FixedZone("UTC+8", 8*60*60)

// at returns June <day>, 2024 at hour:min in testLoc.  June 3 is a Monday,
// June 1 and 2 are a weekend.
func at(day, hour, min int) time.Time {
	return time.Date(2024, time.June, day, hour, min, 0, 0, testLoc)
}

func span(start, end time.Time) TimeRange { return TimeRange{Start: start, End: end} }

func testPolicy() Policy {
	return Policy{
		Location:                   testLoc,
		WeekdayHours:               ClockRange{Begin: Clock{Hour: 9}, End: Clock{Hour: 21}},
		WeekendHours:               ClockRange{Begin: Clock{Hour: 10}, End: Clock{Hour: 17}},
		MinimumReservationDuration: 30 * time.Minute,
		MaximumReservationDuration: 4 * time.Hour,
		StudentAdvanceDays:         7,
		OutsiderAdvanceDays:        1,
		ReservationTimeUnit:        30 * time.Minute,
		CheckInDeadline:            15 * time.Minute,
		TemporaryLeaveDeadline:     time.Hour,
		CheckInViolationPoints:     1,
		PointsToBanUser:            3,
	}
}

func res(id, seat, user string, begin, end time.Time) Reservation {
	return Reservation{ID: id, SeatID: seat, UserID: user, Begin: begin, End: end}
}
