package location

import (
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

// LocationFix is a single position reading. A fix is never mutated after it is built;
// refinements and resolved addresses produce new values.
type LocationFix struct {
	Coordinate     geo.Coordinate
	AccuracyMeters *float64
	Address        *string
	CapturedAt     time.Time
}

// NewFix builds a fix without an address.
func NewFix(c geo.Coordinate, accuracy *float64, capturedAt time.Time) LocationFix {
	f := LocationFix{Coordinate: c, CapturedAt: capturedAt}
	if accuracy != nil {
		a := *accuracy
		f.AccuracyMeters = &a
	}
	return f
}

// Copy returns a fix that shares no pointers with f.
func (f LocationFix) Copy() LocationFix {
	out := LocationFix{Coordinate: f.Coordinate, CapturedAt: f.CapturedAt}
	if f.AccuracyMeters != nil {
		a := *f.AccuracyMeters
		out.AccuracyMeters = &a
	}
	if f.Address != nil {
		s := *f.Address
		out.Address = &s
	}
	return out
}

// WithAddress returns a copy of f carrying address.
func (f LocationFix) WithAddress(address string) LocationFix {
	out := f.Copy()
	out.Address = &address
	return out
}

// Accuracy returns the reported accuracy radius, or +Inf when the sensor did not report one.
func (f LocationFix) Accuracy() float64 {
	if f.AccuracyMeters == nil {
		return math.Inf(1)
	}
	return *f.AccuracyMeters
}

// BetterThan reports whether f has a strictly smaller accuracy radius than other.
func (f LocationFix) BetterThan(other LocationFix) bool {
	return f.Accuracy() < other.Accuracy()
}

// MeetsTarget reports whether the fix accuracy is at or below target meters.
func (f LocationFix) MeetsTarget(target float64) bool {
	return f.AccuracyMeters != nil && *f.AccuracyMeters <= target
}

// Options tune a position request.
type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	// MaxAge accepts a cached fix no older than this. Zero demands a fresh reading.
	MaxAge time.Duration
}

// State is the acquisition pipeline state.
type State string

const (
	StateIdle     State = "idle"
	StateFastFix  State = "fast_fix"
	StateRefining State = "refining"
	StateSettled  State = "settled"
	StateFailed   State = "failed"
)

// Terminal reports whether no further fixes will be accepted in this state.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateFailed
}

// Update is delivered to acquisition listeners on every state change, fix, or resolved address.
type Update struct {
	State  State
	Latest *LocationFix
	Best   *LocationFix
	Err    error
}
