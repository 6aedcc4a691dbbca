package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

// ClosedPeriod is a span during which the library takes no reservations.
type ClosedPeriod struct {
	Begin  time.Time `toml:"begin" json:"begin"`
	End    time.Time `toml:"end" json:"end"`
	Reason string    `toml:"reason" json:"reason,omitempty"`
}

// PolicyDocument is the editable form of the booking policy.  It is read
// from a TOML file and overridden key by key from the settings table, where
// each row stores one of these keys with a JSON value.  The toml and json
// names are identical on purpose so a settings row maps onto a file key.
type PolicyDocument struct {
	Timezone                      string             `toml:"timezone" json:"timezone"`
	WeekdayOpeningHours           engine.ClockRange  `toml:"weekday_opening_hours" json:"weekday_opening_hours"`
	WeekendOpeningHours           engine.ClockRange  `toml:"weekend_opening_hours" json:"weekend_opening_hours"`
	ClosedPeriods                 []ClosedPeriod     `toml:"closed_periods" json:"closed_periods"`
	MinimumReservationMinutes     int                `toml:"minimum_reservation_minutes" json:"minimum_reservation_minutes"`
	MaximumReservationHours       int                `toml:"maximum_reservation_hours" json:"maximum_reservation_hours"`
	StudentReservationLimitDays   int                `toml:"student_reservation_limit_days" json:"student_reservation_limit_days"`
	OutsiderReservationLimitDays  int                `toml:"outsider_reservation_limit_days" json:"outsider_reservation_limit_days"`
	ReservationTimeUnitMinutes    int                `toml:"reservation_time_unit_minutes" json:"reservation_time_unit_minutes"`
	CheckinDeadlineMinutes        int                `toml:"checkin_deadline_minutes" json:"checkin_deadline_minutes"`
	TemporaryLeaveDeadlineMinutes int                `toml:"temporary_leave_deadline_minutes" json:"temporary_leave_deadline_minutes"`
	CheckInViolationPoints        int                `toml:"check_in_violation_points" json:"check_in_violation_points"`
	PointsToBanUser               int                `toml:"points_to_ban_user" json:"points_to_ban_user"`
}

// PolicyKeys lists the keys accepted in the settings table.
var PolicyKeys = []string{
	"timezone",
	"weekday_opening_hours",
	"weekend_opening_hours",
	"closed_periods",
	"minimum_reservation_minutes",
	"maximum_reservation_hours",
	"student_reservation_limit_days",
	"outsider_reservation_limit_days",
	"reservation_time_unit_minutes",
	"checkin_deadline_minutes",
	"temporary_leave_deadline_minutes",
	"check_in_violation_points",
	"points_to_ban_user",
}

// IsPolicyKey reports whether key may be stored as a setting.
func IsPolicyKey(key string) bool {
	for _, k := range PolicyKeys {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultPolicyDocument is used when no policy file exists.
func DefaultPolicyDocument() PolicyDocument {
	return PolicyDocument{
		Timezone:                      "Asia/Taipei",
		WeekdayOpeningHours:           engine.ClockRange{Begin: engine.Clock{Hour: 8}, End: engine.Clock{Hour: 22}},
		WeekendOpeningHours:           engine.ClockRange{Begin: engine.Clock{Hour: 9}, End: engine.Clock{Hour: 17}},
		MinimumReservationMinutes:     30,
		MaximumReservationHours:       4,
		StudentReservationLimitDays:   7,
		OutsiderReservationLimitDays:  1,
		ReservationTimeUnitMinutes:    30,
		CheckinDeadlineMinutes:        15,
		TemporaryLeaveDeadlineMinutes: 60,
		CheckInViolationPoints:        1,
		PointsToBanUser:               3,
	}
}

// LoadPolicyFile decodes a TOML policy file on top of the defaults, so a
// file only needs the keys it changes.  A missing file yields the defaults.
func LoadPolicyFile(path string) (PolicyDocument, error) {
	doc := DefaultPolicyDocument()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("read policy file: %w", err)
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return doc, nil
}

// ApplyOverrides decodes settings rows (key -> JSON value) onto doc.  Unknown
// keys are rejected.
func (doc PolicyDocument) ApplyOverrides(overrides map[string]json.RawMessage) (PolicyDocument, error) {
	if len(overrides) == 0 {
		return doc, nil
	}
	for k := range overrides {
		if !IsPolicyKey(k) {
			return doc, fmt.Errorf("unknown policy key %q", k)
		}
	}
	patch, err := json.Marshal(overrides)
	if err != nil {
		return doc, err
	}
	out := doc
	// json.Unmarshal reuses a slice's backing array; doc must stay untouched.
	out.ClosedPeriods = slices.Clone(doc.ClosedPeriods)
	if err := json.Unmarshal(patch, &out); err != nil {
		return doc, fmt.Errorf("apply policy overrides: %w", err)
	}
	return out, nil
}

// Compile turns the document into an engine policy and validates it.
func (doc PolicyDocument) Compile() (engine.Policy, error) {
	loc, err := time.LoadLocation(doc.Timezone)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("timezone %q: %w", doc.Timezone, err)
	}
	p := engine.Policy{
		Location:                   loc,
		WeekdayHours:               doc.WeekdayOpeningHours,
		WeekendHours:               doc.WeekendOpeningHours,
		MinimumReservationDuration: time.Duration(doc.MinimumReservationMinutes) * time.Minute,
		MaximumReservationDuration: time.Duration(doc.MaximumReservationHours) * time.Hour,
		StudentAdvanceDays:         doc.StudentReservationLimitDays,
		OutsiderAdvanceDays:        doc.OutsiderReservationLimitDays,
		ReservationTimeUnit:        time.Duration(doc.ReservationTimeUnitMinutes) * time.Minute,
		CheckInDeadline:            time.Duration(doc.CheckinDeadlineMinutes) * time.Minute,
		TemporaryLeaveDeadline:     time.Duration(doc.TemporaryLeaveDeadlineMinutes) * time.Minute,
		CheckInViolationPoints:     doc.CheckInViolationPoints,
		PointsToBanUser:            doc.PointsToBanUser,
	}
	for _, cp := range doc.ClosedPeriods {
		p.ClosedPeriods = append(p.ClosedPeriods, engine.TimeRange{Start: cp.Begin, End: cp.End})
	}
	if err := p.Validate(); err != nil {
		return engine.Policy{}, err
	}
	return p, nil
}
