package attendance

import "errors"

// Attendance domain errors
var (
	// Check-in / check-out errors
	ErrAlreadyCheckedOut    = errors.New("you have already checked out today")
	ErrNotCheckedIn         = errors.New("you have not checked in yet")
	ErrOutsideAllowedRadius = errors.New("you are outside the allowed office radius")
	ErrLocationRequired     = errors.New("a gps location or a location session is required")

	// General errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrAttendanceExists   = errors.New("attendance already recorded for this day")
	ErrUserMismatch       = errors.New("attendance can only be recorded for yourself")
	ErrForbidden          = errors.New("not authorized to view this attendance")

	errUnsupportedImage = errors.New("unsupported image format")
)
