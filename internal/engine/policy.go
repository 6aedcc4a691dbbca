package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day with minute precision.  Hour may be 24
// only together with Minute 0, meaning the end of the day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".  "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return Clock{Hour: 24}, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid clock %q: expected HH:MM", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// On returns the instant of c on the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// ClockRange is a daily opening window such as "09:00-21:00".
type ClockRange struct {
	Begin Clock
	End   Clock
}

// ParseClockRange parses "HH:MM-HH:MM".  Begin must be before End.
func ParseClockRange(s string) (ClockRange, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return ClockRange{}, fmt.Errorf("invalid time range format %q: expected 'HH:MM-HH:MM'", s)
	}
	begin, err := ParseClock(parts[0])
	if err != nil {
		return ClockRange{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return ClockRange{}, err
	}
	cr := ClockRange{Begin: begin, End: end}
	if err := cr.validate(); err != nil {
		return ClockRange{}, err
	}
	return cr, nil
}

func (cr ClockRange) validate() error {
	if cr.Begin.Minutes() >= cr.End.Minutes() {
		return fmt.Errorf("start time %s must be before end time %s", cr.Begin, cr.End)
	}
	return nil
}

func (cr ClockRange) String() string { return cr.Begin.String() + "-" + cr.End.String() }

// UnmarshalText lets ClockRange be decoded from TOML and JSON strings.
func (cr *ClockRange) UnmarshalText(text []byte) error {
	parsed, err := ParseClockRange(string(text))
	if err != nil {
		return err
	}
	*cr = parsed
	return nil
}

// MarshalText encodes the range as "HH:MM-HH:MM".
func (cr ClockRange) MarshalText() ([]byte, error) { return []byte(cr.String()), nil }

// On returns the absolute opening window on the calendar day of day.
func (cr ClockRange) On(day time.Time) TimeRange {
	return TimeRange{Start: cr.Begin.On(day), End: cr.End.On(day)}
}

// Policy is the business-hours and booking ruleset.  It is supplied by the
// caller for each evaluation and never modified by the engine.
type Policy struct {
	Location                   *time.Location
	WeekdayHours               ClockRange
	WeekendHours               ClockRange
	ClosedPeriods              []TimeRange
	MinimumReservationDuration time.Duration
	MaximumReservationDuration time.Duration
	StudentAdvanceDays         int
	OutsiderAdvanceDays        int
	ReservationTimeUnit        time.Duration

	// Attendance rules used by EffectiveEnd and the sweeper.
	CheckInDeadline        time.Duration
	TemporaryLeaveDeadline time.Duration
	CheckInViolationPoints int
	PointsToBanUser        int
}

// MaxAdvanceDays bounds the advance-booking limits so the limit in
// IsWithinAdvanceLimit stays representable as a time.Duration.
const MaxAdvanceDays = 3650

// Validate reports every missing or inconsistent field.
func (p Policy) Validate() error {
	var errs []error
	if p.Location == nil {
		errs = append(errs, errors.New("location is required"))
	}
	if err := p.WeekdayHours.validate(); err != nil {
		errs = append(errs, fmt.Errorf("weekday hours: %w", err))
	}
	if err := p.WeekendHours.validate(); err != nil {
		errs = append(errs, fmt.Errorf("weekend hours: %w", err))
	}
	if p.ReservationTimeUnit < time.Minute || p.ReservationTimeUnit%time.Minute != 0 {
		errs = append(errs, fmt.Errorf("reservation time unit %s must be a positive whole number of minutes", p.ReservationTimeUnit))
	}
	if p.MinimumReservationDuration <= 0 {
		errs = append(errs, errors.New("minimum reservation duration must be positive"))
	}
	if p.MaximumReservationDuration < p.MinimumReservationDuration {
		errs = append(errs, errors.New("maximum reservation duration must not be below the minimum"))
	}
	if p.StudentAdvanceDays < 0 || p.OutsiderAdvanceDays < 0 {
		errs = append(errs, errors.New("advance limits must not be negative"))
	}
	if p.StudentAdvanceDays > MaxAdvanceDays || p.OutsiderAdvanceDays > MaxAdvanceDays {
		errs = append(errs, fmt.Errorf("advance limits must not exceed %d days", MaxAdvanceDays))
	}
	for i, cp := range p.ClosedPeriods {
		if cp.End.Before(cp.Start) {
			errs = append(errs, fmt.Errorf("closed period %d ends before it starts", i))
		}
	}
	return errors.Join(errs...)
}

// MustValidate panics when the policy is malformed.  A broken policy is a
// configuration bug, not a request the engine can reject.
func (p Policy) MustValidate() {
	if err := p.Validate(); err != nil {
		panic("engine: invalid policy: " + err.Error())
	}
}

// AdvanceLimitDays returns how many days ahead role may book.
func (p Policy) AdvanceLimitDays(role Role) int {
	switch role {
	case RoleStudent:
		return p.StudentAdvanceDays
	case RoleOutsider:
		return p.OutsiderAdvanceDays
	}
	panic(fmt.Sprintf("engine: unknown role %q", role))
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// OpeningHoursFor returns the opening window of the calendar day of date,
// evaluated in the policy location.
func OpeningHoursFor(date time.Time, p Policy) TimeRange {
	local := date.In(p.Location)
	if IsWeekend(local) {
		return p.WeekendHours.On(local)
	}
	return p.WeekdayHours.On(local)
}

// SameDay reports whether a and b share a calendar day in the policy location.
func SameDay(a, b time.Time, p Policy) bool {
	ay, am, ad := a.In(p.Location).Date()
	by, bm, bd := b.In(p.Location).Date()
	return ay == by && am == bm && ad == bd
}

// Details attached to OutsideBusinessHours rejections.
const (
	DetailWeekdayHours = "weekday_hours"
	DetailWeekendHours = "weekend_hours"
	DetailClosedPeriod = "closed_period"
)

// IsWithinBusinessHours reports whether r lies inside the opening hours of
// its start day and clear of every closed period.
func IsWithinBusinessHours(r TimeRange, p Policy) bool {
	return businessHoursViolation(r, p) == ""
}

// businessHoursViolation returns "" when r is within business hours and
// otherwise the detail naming the rule it broke.
func businessHoursViolation(r TimeRange, p Policy) string {
	if !OpeningHoursFor(r.Start, p).Contains(r) {
		if IsWeekend(r.Start.In(p.Location)) {
			return DetailWeekendHours
		}
		return DetailWeekdayHours
	}
	for _, cp := range p.ClosedPeriods {
		if Overlaps(r, cp) {
			return DetailClosedPeriod
		}
	}
	return ""
}

// IsAlignedToGranularity reports whether t sits exactly on a multiple of the
// reservation time unit, counted in minutes from local midnight.
func IsAlignedToGranularity(t time.Time, p Policy) bool {
	local := t.In(p.Location)
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	unit := int(p.ReservationTimeUnit / time.Minute)
	return (local.Hour()*60+local.Minute())%unit == 0
}

// IsWithinDurationBounds reports whether min <= r.Duration() <= max.
func IsWithinDurationBounds(r TimeRange, p Policy) bool {
	d := r.Duration()
	return d >= p.MinimumReservationDuration && d <= p.MaximumReservationDuration
}

// IsWithinAdvanceLimit reports whether r starts no more than the role's
// advance limit after now.
func IsWithinAdvanceLimit(r TimeRange, p Policy, role Role, now time.Time) bool {
	limit := time.Duration(p.AdvanceLimitDays(role)) * 24 * time.Hour
	return r.Start.Sub(now) <= limit
}
