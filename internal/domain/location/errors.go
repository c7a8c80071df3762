package location

import (
	"errors"
	"strings"
)

// Position source errors
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// Geocoding and acquisition errors
var (
	ErrGeocodeUnavailable   = errors.New("reverse geocoding unavailable")
	ErrAcquisitionCancelled = errors.New("location acquisition cancelled")
	ErrSessionNotFound      = errors.New("location session not found")
	ErrSessionClosed        = errors.New("location session is closed")
	ErrNoFix                = errors.New("location session has no fix yet")
)

// Error codes reported by devices when pushing a failed reading.
const (
	CodePermissionDenied    = "permission_denied"
	CodePositionUnavailable = "position_unavailable"
	CodeTimeout             = "timeout"
)

// ErrorFromCode maps a device error code to its sentinel error, or nil for an unknown code.
func ErrorFromCode(code string) error {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodePositionUnavailable:
		return ErrPositionUnavailable
	case CodeTimeout:
		return ErrTimeout
	}
	return nil
}

var userMessages = []struct {
	err error
	msg string
}{
	{ErrPermissionDenied, "Location access is blocked. Allow location permission for this site in your browser settings and try again."},
	{ErrPositionUnavailable, "Your device could not determine its position. Turn on GPS or move closer to a window, then retry."},
	{ErrTimeout, "Getting your location took too long. Check that location services are on and try again."},
	{ErrNoFix, "No location has been received yet. Keep this page open until your position appears."},
	{ErrSessionNotFound, "This location session has expired. Refresh your location and try again."},
	{ErrSessionClosed, "This location session is already finished. Refresh your location to start a new one."},
	{ErrAcquisitionCancelled, "Location request was cancelled."},
}

// UserMessage returns the actionable message shown to employees for a location error.
// It returns an empty string for errors outside the location taxonomy.
func UserMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return ""
}
