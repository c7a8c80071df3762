package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
)

const dateLayout = "2006-01-02"

// Resolver classifies attendance events against office hours in one canonical time zone.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	loc *time.Location
}

// NewResolver returns a resolver comparing wall-clock times in loc (UTC when nil).
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Local is the only place instants are converted to office wall-clock time.
func (r *Resolver) Local(t time.Time) time.Time {
	return t.In(r.loc)
}

// Day returns the local calendar day of t at midnight.
func (r *Resolver) Day(t time.Time) time.Time {
	y, m, d := r.Local(t).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

// ParseDay parses a YYYY-MM-DD attendance day.
func (r *Resolver) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, r.loc)
}

// minute truncates t to its local minute; office rules have minute precision.
func (r *Resolver) minute(t time.Time) time.Time {
	l := r.Local(t)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), 0, 0, r.loc)
}

// Resolve classifies a single event. Without a rule the event is on time and unscheduled.
func (r *Resolver) Resolve(event attendance.Event, rule *officehours.Rule) attendance.Status {
	status := attendance.Status{
		Lateness:  attendance.LatenessOnTime,
		Earliness: attendance.EarlinessOnTime,
		Scheduled: rule != nil,
	}
	if rule == nil {
		return status
	}

	at := r.minute(event.Timestamp)
	switch event.Kind {
	case attendance.KindCheckIn:
		if at.After(rule.CheckInDeadline(at)) {
			status.Lateness = attendance.LatenessLate
		}
	case attendance.KindCheckOut:
		if at.Before(rule.EarliestCheckOut(at)) {
			status.Earliness = attendance.EarlinessEarly
		}
	}
	return status
}

// ResolveDay combines the check-in and optional check-out classifications and computes
// worked minutes once both exist. A check-out at or before the check-in reports zero
// minutes and sets Anomaly.
func (r *Resolver) ResolveDay(checkIn attendance.Event, checkOut *attendance.Event, rule *officehours.Rule) attendance.Status {
	status := r.Resolve(checkIn, rule)
	if checkOut == nil {
		return status
	}

	status.Earliness = r.Resolve(*checkOut, rule).Earliness

	worked := checkOut.Timestamp.Sub(checkIn.Timestamp)
	minutes := 0
	if worked > 0 {
		minutes = int(worked / time.Minute)
	} else {
		status.Anomaly = true
	}
	status.WorkedMinutes = &minutes
	return status
}

// ResolveRecord recomputes a stored record's status.
func (r *Resolver) ResolveRecord(record attendance.Record, rule *officehours.Rule) attendance.Status {
	return r.ResolveDay(record.CheckInEvent(), record.CheckOutEvent(), rule)
}
