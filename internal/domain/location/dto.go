package location

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// MaxAccuracyMeters rejects readings whose radius is too coarse to describe a workplace.
const MaxAccuracyMeters = 10000

type StartSessionRequest struct {
	TargetAccuracy       *float64 `json:"target_accuracy,omitempty"`
	RefineTimeoutSeconds *int     `json:"refine_timeout_seconds,omitempty"`
}

func (r *StartSessionRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.TargetAccuracy != nil && (*r.TargetAccuracy <= 0 || *r.TargetAccuracy > MaxAccuracyMeters) {
		errs = append(errs, validator.ValidationError{
			Field:   "target_accuracy",
			Message: "target_accuracy must be greater than 0 and at most 10000",
		})
	}

	if r.RefineTimeoutSeconds != nil && (*r.RefineTimeoutSeconds < 1 || *r.RefineTimeoutSeconds > 300) {
		errs = append(errs, validator.ValidationError{
			Field:   "refine_timeout_seconds",
			Message: "refine_timeout_seconds must be between 1 and 300",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PushFixRequest carries either a reading or an error code reported by the device.
type PushFixRequest struct {
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

func (r *PushFixRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Error != nil {
		if ErrorFromCode(*r.Error) == nil {
			errs = append(errs, validator.ValidationError{
				Field:   "error",
				Message: "error must be one of permission_denied, position_unavailable, timeout",
			})
		}
		if len(errs) > 0 {
			return errs
		}
		return nil
	}

	if r.Latitude == nil {
		errs = append(errs, validator.ValidationError{Field: "latitude", Message: "latitude is required"})
	} else if !validator.IsValidLatitude(*r.Latitude) {
		errs = append(errs, validator.ValidationError{Field: "latitude", Message: "latitude must be between -90 and 90"})
	}

	if r.Longitude == nil {
		errs = append(errs, validator.ValidationError{Field: "longitude", Message: "longitude is required"})
	} else if !validator.IsValidLongitude(*r.Longitude) {
		errs = append(errs, validator.ValidationError{Field: "longitude", Message: "longitude must be between -180 and 180"})
	}

	if r.Accuracy != nil && (*r.Accuracy < 0 || *r.Accuracy > MaxAccuracyMeters) {
		errs = append(errs, validator.ValidationError{Field: "accuracy", Message: "accuracy must be between 0 and 10000"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Fix converts a validated reading into a LocationFix, stamping now when the device sent no time.
func (r *PushFixRequest) Fix(now time.Time) LocationFix {
	capturedAt := now
	if r.CapturedAt != nil {
		capturedAt = *r.CapturedAt
	}
	return NewFix(geo.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}, r.Accuracy, capturedAt)
}

type FixResponse struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`
	Address    *string   `json:"address"`
	CapturedAt time.Time `json:"captured_at"`
}

func NewFixResponse(f *LocationFix) *FixResponse {
	if f == nil {
		return nil
	}
	c := f.Copy()
	return &FixResponse{
		Latitude:   c.Coordinate.Latitude,
		Longitude:  c.Coordinate.Longitude,
		Accuracy:   c.AccuracyMeters,
		Address:    c.Address,
		CapturedAt: c.CapturedAt,
	}
}

type SessionResponse struct {
	ID           string       `json:"id"`
	State        State        `json:"state"`
	Best         *FixResponse `json:"best"`
	Latest       *FixResponse `json:"latest"`
	Error        *string      `json:"error,omitempty"`
	Message      *string      `json:"message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
}

// SSETokenResponse is a short-lived token for the session event stream, which cannot send
// an Authorization header.
type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
