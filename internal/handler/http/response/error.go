package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Location errors share one table of employee-facing messages
	if msg := location.UserMessage(err); msg != "" {
		switch {
		case errors.Is(err, location.ErrSessionNotFound):
			NotFound(w, msg)
		case errors.Is(err, location.ErrSessionClosed), errors.Is(err, location.ErrNoFix):
			Conflict(w, msg)
		default:
			BadRequest(w, msg, nil)
		}
		return
	}

	switch {
	// Identity and permission errors
	case errors.Is(err, user.ErrIdentityMissing), errors.Is(err, user.ErrUnknownRole):
		Unauthorized(w, "Invalid or missing access token")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")
	case errors.Is(err, user.ErrDepartmentRequired):
		Forbidden(w, "Your account has no department assigned")

	// Attendance domain errors
	case errors.Is(err, attendance.ErrUserMismatch):
		Forbidden(w, "You can only record attendance for yourself")
	case errors.Is(err, attendance.ErrForbidden):
		Forbidden(w, "You are not allowed to view this attendance")
	case errors.Is(err, attendance.ErrOutsideAllowedRadius):
		Forbidden(w, err.Error())
	case errors.Is(err, attendance.ErrLocationRequired):
		BadRequest(w, "GPS location or a location session is required", nil)
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		Conflict(w, "You have already checked out today")
	case errors.Is(err, attendance.ErrNotCheckedIn):
		Conflict(w, "You have not checked in")
	case errors.Is(err, attendance.ErrAttendanceExists):
		Conflict(w, "Attendance already recorded for today")
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance not found")

	// Office hours errors
	case errors.Is(err, officehours.ErrRuleNotFound):
		NotFound(w, "Office hours rule not found")
	case errors.Is(err, officehours.ErrInvalidTimeRange):
		BadRequest(w, "End time must be after start time", nil)
	case errors.Is(err, officehours.ErrDuplicateGlobalRule), errors.Is(err, officehours.ErrDuplicateDepartmentRule):
		Conflict(w, err.Error())

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
