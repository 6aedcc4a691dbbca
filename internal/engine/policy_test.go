package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockRange(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		want        string
	}{
		{"valid", "09:00-21:00", false, "09:00-21:00"},
		{"single digit hour", "9:30-17:00", false, "09:30-17:00"},
		{"end of day", "08:00-24:00", false, "08:00-24:00"},
		{"bad separator", "09:00/17:00", true, ""},
		{"start after end", "17:00-09:00", true, ""},
		{"equal ends", "09:00-09:00", true, ""},
		{"garbage", "nine-17:00", true, ""},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cr ClockRange
			err := cr.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cr.String())
		})
	}
}

func TestOpeningHoursFor(t *testing.T) {
	p := testPolicy()

	weekday := OpeningHoursFor(at(3, 12, 0), p)
	assert.Equal(t, at(3, 9, 0), weekday.Start)
	assert.Equal(t, at(3, 21, 0), weekday.End)

	saturday := OpeningHoursFor(at(1, 12, 0), p)
	assert.Equal(t, at(1, 10, 0), saturday.Start)
	assert.Equal(t, at(1, 17, 0), saturday.End)

	// 2024-06-02 20:00 UTC is already Monday June 3 in the policy location.
	utc := time.Date(2024, time.June, 2, 20, 0, 0, 0, time.UTC)
	shifted := OpeningHoursFor(utc, p)
	assert.Equal(t, at(3, 9, 0), shifted.Start)
}

func TestIsWithinBusinessHours(t *testing.T) {
	p := testPolicy()
	p.ClosedPeriods = []TimeRange{span(at(5, 13, 0), at(5, 15, 0))}

	tests := []struct {
		name   string
		r      TimeRange
		want   bool
		detail string
	}{
		{"inside weekday", span(at(3, 10, 0), at(3, 12, 0)), true, ""},
		{"exactly opening hours", span(at(3, 9, 0), at(3, 21, 0)), true, ""},
		{"before opening", span(at(3, 8, 30), at(3, 10, 0)), false, DetailWeekdayHours},
		{"after closing", span(at(3, 20, 0), at(3, 21, 30)), false, DetailWeekdayHours},
		{"weekend outside", span(at(1, 16, 0), at(1, 18, 0)), false, DetailWeekendHours},
		{"weekend inside", span(at(1, 11, 0), at(1, 12, 0)), true, ""},
		{"inside closed period", span(at(5, 13, 30), at(5, 14, 30)), false, DetailClosedPeriod},
		{"touching closed period", span(at(5, 11, 0), at(5, 13, 0)), true, ""},
		{"crossing midnight", span(at(3, 20, 0), at(4, 9, 30)), false, DetailWeekdayHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithinBusinessHours(tt.r, p))
			assert.Equal(t, tt.detail, businessHoursViolation(tt.r, p))
		})
	}
}

func TestIsAlignedToGranularity(t *testing.T) {
	p := testPolicy()
	assert.True(t, IsAlignedToGranularity(at(3, 10, 0), p))
	assert.True(t, IsAlignedToGranularity(at(3, 10, 30), p))
	assert.False(t, IsAlignedToGranularity(at(3, 10, 15), p))
	assert.False(t, IsAlignedToGranularity(at(3, 10, 0).Add(time.Second), p))

	p.ReservationTimeUnit = 15 * time.Minute
	assert.True(t, IsAlignedToGranularity(at(3, 10, 45), p))
}

func TestIsWithinDurationBounds(t *testing.T) {
	p := testPolicy()
	assert.True(t, IsWithinDurationBounds(span(at(3, 10, 0), at(3, 10, 30)), p))
	assert.True(t, IsWithinDurationBounds(span(at(3, 10, 0), at(3, 14, 0)), p))
	assert.False(t, IsWithinDurationBounds(span(at(3, 10, 0), at(3, 14, 30)), p))
	assert.False(t, IsWithinDurationBounds(span(at(3, 10, 0), at(3, 10, 15)), p))
}

func TestIsWithinAdvanceLimit(t *testing.T) {
	p := testPolicy()
	now := at(3, 10, 0)

	assert.True(t, IsWithinAdvanceLimit(span(at(10, 10, 0), at(10, 11, 0)), p, RoleStudent, now))
	assert.False(t, IsWithinAdvanceLimit(span(at(10, 10, 30), at(10, 11, 0)), p, RoleStudent, now))
	assert.True(t, IsWithinAdvanceLimit(span(at(4, 10, 0), at(4, 11, 0)), p, RoleOutsider, now))
	assert.False(t, IsWithinAdvanceLimit(span(at(5, 10, 0), at(5, 11, 0)), p, RoleOutsider, now))
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, testPolicy().Validate())

	p := testPolicy()
	p.Location = nil
	p.ReservationTimeUnit = 0
	p.MaximumReservationDuration = time.Minute
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location")
	assert.Contains(t, err.Error(), "time unit")
	assert.Contains(t, err.Error(), "maximum")

	assert.Panics(t, func() { p.MustValidate() })
}

func TestPolicyValidate_AdvanceLimitBound(t *testing.T) {
	p := testPolicy()
	p.StudentAdvanceDays = MaxAdvanceDays
	require.NoError(t, p.Validate())

	p.OutsiderAdvanceDays = 200000
	assert.ErrorContains(t, p.Validate(), "must not exceed")
}

func TestAdvanceLimitDays_UnknownRolePanics(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, 7, p.AdvanceLimitDays(RoleStudent))
	assert.Equal(t, 1, p.AdvanceLimitDays(RoleOutsider))
	assert.Panics(t, func() { p.AdvanceLimitDays(Role("admin")) })
}

func TestReservationEffectiveEnd(t *testing.T) {
	p := testPolicy()
	leave := at(3, 10, 30)
	r := res("r1", "A01", "u1", at(3, 10, 0), at(3, 14, 0))
	r.TemporaryLeaveAt = &leave

	assert.Equal(t, at(3, 14, 0), r.EffectiveEnd(at(3, 11, 0), p), "deadline not reached yet")
	assert.Equal(t, at(3, 11, 30), r.EffectiveEnd(at(3, 11, 30), p))
	assert.Equal(t, at(3, 11, 30), r.EffectiveEnd(at(3, 13, 0), p))

	late := at(3, 13, 30)
	r.TemporaryLeaveAt = &late
	assert.Equal(t, at(3, 14, 0), r.EffectiveEnd(at(3, 15, 0), p), "cutoff after end keeps end")

	r.TemporaryLeaveAt = nil
	assert.Equal(t, at(3, 14, 0), r.EffectiveEnd(at(3, 20, 0), p))
	assert.True(t, r.IsPending(at(3, 13, 0), p))
	assert.False(t, r.IsPending(at(3, 14, 0), p))
}
