package officehours

import (
	"fmt"
	"strings"
	"time"
)

// LocalTime is a wall-clock time of day in the company time zone.
type LocalTime struct {
	Hour   int
	Minute int
}

// ParseLocalTime accepts "HH:MM" or "HH:MM:SS"; seconds are dropped.
func ParseLocalTime(s string) (LocalTime, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return LocalTime{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return LocalTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t LocalTime) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns t on the calendar day of day, in day's location.
func (t LocalTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// Rule is an office-hours configuration. A nil Department marks the global default.
type Rule struct {
	ID                   string
	Department           *string
	StartTime            LocalTime
	EndTime              LocalTime
	CheckInGraceMinutes  int
	CheckOutGraceMinutes int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsGlobal reports whether the rule applies to every department without its own rule.
func (r Rule) IsGlobal() bool {
	return r.Department == nil || NormalizeDepartment(*r.Department) == ""
}

// Key is the normalized department, empty for the global rule.
func (r Rule) Key() string {
	if r.Department == nil {
		return ""
	}
	return NormalizeDepartment(*r.Department)
}

// CheckInDeadline is start + check-in grace on day.
func (r Rule) CheckInDeadline(day time.Time) time.Time {
	return r.StartTime.On(day).Add(time.Duration(r.CheckInGraceMinutes) * time.Minute)
}

// EarliestCheckOut is end - check-out grace on day.
func (r Rule) EarliestCheckOut(day time.Time) time.Time {
	return r.EndTime.On(day).Add(-time.Duration(r.CheckOutGraceMinutes) * time.Minute)
}

// Clone returns a rule sharing no pointers with r.
func (r Rule) Clone() Rule {
	out := r
	if r.Department != nil {
		d := *r.Department
		out.Department = &d
	}
	return out
}

// NormalizeDepartment trims and case-folds a department name.
func NormalizeDepartment(department string) string {
	return strings.ToLower(strings.TrimSpace(department))
}
