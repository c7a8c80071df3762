package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
)

type Kind string

const (
	KindCheckIn  Kind = "check_in"
	KindCheckOut Kind = "check_out"
)

type Lateness string

const (
	LatenessOnTime Lateness = "on_time"
	LatenessLate   Lateness = "late"
)

type Earliness string

const (
	EarlinessOnTime Earliness = "on_time"
	EarlinessEarly  Earliness = "early"
)

type WorkLocation string

const (
	WorkLocationOffice       WorkLocation = "office"
	WorkLocationWorkFromHome WorkLocation = "work_from_home"
)

func (w WorkLocation) Valid() bool {
	return w == WorkLocationOffice || w == WorkLocationWorkFromHome
}

// Event is one check-in or check-out. It owns a copy of its fix.
type Event struct {
	Kind       Kind
	Timestamp  time.Time
	Fix        location.LocationFix
	Department string
}

func NewEvent(kind Kind, timestamp time.Time, fix location.LocationFix, department string) Event {
	return Event{
		Kind:       kind,
		Timestamp:  timestamp,
		Fix:        fix.Copy(),
		Department: department,
	}
}

// Status is derived from events and the applicable office-hours rule; it is never stored.
type Status struct {
	Lateness      Lateness
	Earliness     Earliness
	WorkedMinutes *int
	// Anomaly marks a non-positive worked duration, reported as zero minutes.
	Anomaly bool
	// Scheduled is false when no office-hours rule applied.
	Scheduled bool
}

// Record is one user's attendance day.
type Record struct {
	ID           string
	UserID       string
	EmployeeName string
	Department   string
	// Date is the local calendar day of the check-in.
	Date              time.Time
	CheckIn           time.Time
	CheckOut          *time.Time
	CheckInFix        location.LocationFix
	CheckOutFix       *location.LocationFix
	CheckInSelfieURL  *string
	CheckOutSelfieURL *string
	WorkLocation      WorkLocation
	WorkSummary       *string
	WorkReport        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsOpen reports whether the record still waits for a check-out.
func (r Record) IsOpen() bool {
	return r.CheckOut == nil
}

func (r Record) CheckInEvent() Event {
	return NewEvent(KindCheckIn, r.CheckIn, r.CheckInFix, r.Department)
}

// CheckOutEvent is nil while the record is open.
func (r Record) CheckOutEvent() *Event {
	if r.CheckOut == nil {
		return nil
	}
	var fix location.LocationFix
	if r.CheckOutFix != nil {
		fix = *r.CheckOutFix
	}
	e := NewEvent(KindCheckOut, *r.CheckOut, fix, r.Department)
	return &e
}
