package attendance

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const (
	maxSelfieBytes        = 10 << 20 // 10MB
	minWorkSummaryLength  = 10
	maxWorkSummaryLength  = 1000
	maxAddressLength      = 500
	maxWorkReportLength   = 2000
	dateLayout            = "2006-01-02"
	defaultPageLimit      = 20
	maxPageLimit          = 100
	defaultSortOrder      = "desc"
	timestampResponseForm = time.RFC3339
)

// ========================================
// CHECK-IN / CHECK-OUT DTOs
// ========================================

// LocationInput is the gps_location object sent by the portal.
type LocationInput struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Address   *string    `json:"address,omitempty"`
	PlaceName *string    `json:"place_name,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (l *LocationInput) validate(errs validator.ValidationErrors) validator.ValidationErrors {
	if l.Latitude == nil {
		errs = append(errs, validator.ValidationError{Field: "gps_location.latitude", Message: "latitude is required"})
	} else if !validator.IsValidLatitude(*l.Latitude) {
		errs = append(errs, validator.ValidationError{Field: "gps_location.latitude", Message: "latitude must be between -90 and 90"})
	}

	if l.Longitude == nil {
		errs = append(errs, validator.ValidationError{Field: "gps_location.longitude", Message: "longitude is required"})
	} else if !validator.IsValidLongitude(*l.Longitude) {
		errs = append(errs, validator.ValidationError{Field: "gps_location.longitude", Message: "longitude must be between -180 and 180"})
	}

	if l.Accuracy != nil && (*l.Accuracy < 0 || *l.Accuracy > location.MaxAccuracyMeters) {
		errs = append(errs, validator.ValidationError{Field: "gps_location.accuracy", Message: "accuracy must be between 0 and 10000"})
	}

	if l.Address != nil && len(*l.Address) > maxAddressLength {
		errs = append(errs, validator.ValidationError{Field: "gps_location.address", Message: "address must not exceed 500 characters"})
	}

	return errs
}

// Fix converts a validated location into a LocationFix. A blank address is dropped so the
// geocoder can fill it in.
func (l *LocationInput) Fix(now time.Time) location.LocationFix {
	capturedAt := now
	if l.Timestamp != nil {
		capturedAt = *l.Timestamp
	}
	fix := location.NewFix(geo.Coordinate{Latitude: *l.Latitude, Longitude: *l.Longitude}, l.Accuracy, capturedAt)
	if l.Address != nil && strings.TrimSpace(*l.Address) != "" {
		fix = fix.WithAddress(strings.TrimSpace(*l.Address))
	}
	return fix
}

// Selfie is an uploaded photo, either a multipart file or a base64 string (optionally a data URL).
type Selfie struct {
	Base64 string                `json:"selfie,omitempty"`
	File   multipart.File        `json:"-"`
	Header *multipart.FileHeader `json:"-"`
}

// Present reports whether any selfie was sent.
func (s Selfie) Present() bool {
	return s.Header != nil || strings.TrimSpace(s.Base64) != ""
}

// Open returns the image bytes and a filename whose extension hints the format.
func (s Selfie) Open() (io.Reader, string, error) {
	if s.Header != nil {
		return s.File, s.Header.Filename, nil
	}
	data, ext, err := decodeBase64Image(s.Base64)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "selfie" + ext, nil
}

func (s Selfie) validate(errs validator.ValidationErrors, required bool) validator.ValidationErrors {
	if !s.Present() {
		if required {
			errs = append(errs, validator.ValidationError{Field: "selfie", Message: "selfie is required"})
		}
		return errs
	}

	if s.Header != nil {
		ext := strings.ToLower(filepath.Ext(s.Header.Filename))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			errs = append(errs, validator.ValidationError{Field: "selfie", Message: "invalid file type: only jpg, jpeg, png allowed"})
		} else if s.Header.Size > maxSelfieBytes {
			errs = append(errs, validator.ValidationError{Field: "selfie", Message: "selfie size must not exceed 10MB"})
		}
		return errs
	}

	data, _, err := decodeBase64Image(s.Base64)
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "selfie", Message: "selfie must be a base64 encoded jpg or png image"})
	} else if len(data) > maxSelfieBytes {
		errs = append(errs, validator.ValidationError{Field: "selfie", Message: "selfie size must not exceed 10MB"})
	}
	return errs
}

// decodeBase64Image strips an optional data URL prefix and sniffs the image type.
func decodeBase64Image(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return data, ".jpg", nil
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return data, ".png", nil
	}
	return nil, "", errUnsupportedImage
}

type CheckInRequest struct {
	UserID       string         `json:"user_id"`
	GPSLocation  *LocationInput `json:"gps_location,omitempty"`
	SessionID    *string        `json:"session_id,omitempty"`
	WorkLocation string         `json:"work_location,omitempty"`
	Selfie
}

func (r *CheckInRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = validateLocationSource(errs, r.GPSLocation, r.SessionID)
	errs = validateWorkLocation(errs, &r.WorkLocation)
	errs = r.Selfie.validate(errs, true)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CheckOutRequest closes the open record. The geofence follows the work location declared
// at check-in.
type CheckOutRequest struct {
	UserID      string         `json:"user_id"`
	GPSLocation *LocationInput `json:"gps_location,omitempty"`
	SessionID   *string        `json:"session_id,omitempty"`
	WorkSummary string         `json:"work_summary"`
	WorkReport  *string        `json:"work_report,omitempty"`
	Selfie
}

func (r *CheckOutRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = validateLocationSource(errs, r.GPSLocation, r.SessionID)
	errs = r.Selfie.validate(errs, false)

	summary := strings.TrimSpace(r.WorkSummary)
	if summary == "" {
		errs = append(errs, validator.ValidationError{Field: "work_summary", Message: "work_summary is required"})
	} else if n := len([]rune(summary)); n < minWorkSummaryLength || n > maxWorkSummaryLength {
		errs = append(errs, validator.ValidationError{Field: "work_summary", Message: "work_summary must be between 10 and 1000 characters"})
	}

	if r.WorkReport != nil && len(*r.WorkReport) > maxWorkReportLength {
		errs = append(errs, validator.ValidationError{Field: "work_report", Message: "work_report must not exceed 2000 characters"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateLocationSource(errs validator.ValidationErrors, gps *LocationInput, sessionID *string) validator.ValidationErrors {
	hasSession := sessionID != nil && !validator.IsEmpty(*sessionID)
	if gps == nil && !hasSession {
		return append(errs, validator.ValidationError{Field: "gps_location", Message: ErrLocationRequired.Error()})
	}
	if gps != nil {
		errs = gps.validate(errs)
	}
	return errs
}

// validateWorkLocation defaults an empty value to office.
func validateWorkLocation(errs validator.ValidationErrors, wl *string) validator.ValidationErrors {
	if validator.IsEmpty(*wl) {
		*wl = string(WorkLocationOffice)
		return errs
	}
	*wl = strings.ToLower(strings.TrimSpace(*wl))
	if !WorkLocation(*wl).Valid() {
		errs = append(errs, validator.ValidationError{Field: "work_location", Message: "work_location must be one of: office, work_from_home"})
	}
	return errs
}

// ========================================
// RESPONSE DTOs
// ========================================

type LocationResponse struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Accuracy   *float64 `json:"accuracy"`
	Address    *string  `json:"address"`
	CapturedAt string   `json:"captured_at"`
}

func NewLocationResponse(f location.LocationFix) LocationResponse {
	c := f.Copy()
	return LocationResponse{
		Latitude:   c.Coordinate.Latitude,
		Longitude:  c.Coordinate.Longitude,
		Accuracy:   c.AccuracyMeters,
		Address:    c.Address,
		CapturedAt: c.CapturedAt.Format(timestampResponseForm),
	}
}

type StatusResponse struct {
	Lateness      Lateness  `json:"lateness"`
	Earliness     Earliness `json:"earliness"`
	WorkedMinutes *int      `json:"worked_minutes"`
	WorkedHours   *float64  `json:"worked_hours"`
	Anomaly       bool      `json:"anomaly"`
	Scheduled     bool      `json:"scheduled"`
}

func NewStatusResponse(s Status) StatusResponse {
	resp := StatusResponse{
		Lateness:  s.Lateness,
		Earliness: s.Earliness,
		Anomaly:   s.Anomaly,
		Scheduled: s.Scheduled,
	}
	if s.WorkedMinutes != nil {
		m := *s.WorkedMinutes
		h := float64(int(float64(m)/60*100+0.5)) / 100
		resp.WorkedMinutes = &m
		resp.WorkedHours = &h
	}
	return resp
}

type AttendanceResponse struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	EmployeeName      string            `json:"employee_name"`
	Department        string            `json:"department"`
	Date              string            `json:"date"`
	State             string            `json:"state"`
	CheckIn           string            `json:"check_in"`
	CheckOut          *string           `json:"check_out"`
	CheckInLocation   LocationResponse  `json:"check_in_location"`
	CheckOutLocation  *LocationResponse `json:"check_out_location"`
	CheckInSelfieURL  *string           `json:"check_in_selfie_url"`
	CheckOutSelfieURL *string           `json:"check_out_selfie_url"`
	WorkLocation      WorkLocation      `json:"work_location"`
	WorkSummary       *string           `json:"work_summary"`
	WorkReport        *string           `json:"work_report"`
	Status            StatusResponse    `json:"status"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
}

const (
	StateCheckedIn  = "checked_in"
	StateCheckedOut = "checked_out"
)

// NewAttendanceResponse renders a record with its freshly resolved status. Times are
// rendered in loc.
func NewAttendanceResponse(r Record, status Status, loc *time.Location) AttendanceResponse {
	resp := AttendanceResponse{
		ID:                r.ID,
		UserID:            r.UserID,
		EmployeeName:      r.EmployeeName,
		Department:        r.Department,
		Date:              r.Date.Format(dateLayout),
		State:             StateCheckedIn,
		CheckIn:           r.CheckIn.In(loc).Format(timestampResponseForm),
		CheckInLocation:   NewLocationResponse(r.CheckInFix),
		CheckInSelfieURL:  r.CheckInSelfieURL,
		CheckOutSelfieURL: r.CheckOutSelfieURL,
		WorkLocation:      r.WorkLocation,
		WorkSummary:       r.WorkSummary,
		WorkReport:        r.WorkReport,
		Status:            NewStatusResponse(status),
		CreatedAt:         r.CreatedAt.In(loc).Format(timestampResponseForm),
		UpdatedAt:         r.UpdatedAt.In(loc).Format(timestampResponseForm),
	}
	if r.CheckOut != nil {
		out := r.CheckOut.In(loc).Format(timestampResponseForm)
		resp.CheckOut = &out
		resp.State = StateCheckedOut
	}
	if r.CheckOutFix != nil {
		l := NewLocationResponse(*r.CheckOutFix)
		resp.CheckOutLocation = &l
	}
	return resp
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Showing     string               `json:"showing"`
	Attendances []AttendanceResponse `json:"attendances"`
}

// ScheduleInfo describes the office-hours rule that applies to the caller today.
type ScheduleInfo struct {
	RuleID      string  `json:"rule_id"`
	Department  *string `json:"department"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	LateAfter   string  `json:"late_after"`
	EarlyBefore string  `json:"early_before"`
}

type TodayResponse struct {
	Date             string              `json:"date"`
	HasScheduleToday bool                `json:"has_schedule_today"`
	Schedule         *ScheduleInfo       `json:"schedule,omitempty"`
	HasCheckedIn     bool                `json:"has_checked_in"`
	CanCheckIn       bool                `json:"can_check_in"`
	CanCheckOut      bool                `json:"can_check_out"`
	Attendance       *AttendanceResponse `json:"attendance,omitempty"`
	Message          string              `json:"message"`
}

type SummaryResponse struct {
	Date             string  `json:"date"`
	Department       *string `json:"department"`
	Present          int     `json:"present"`
	CheckedOut       int     `json:"checked_out"`
	StillCheckedIn   int     `json:"still_checked_in"`
	LateArrivals     int     `json:"late_arrivals"`
	EarlyDepartures  int     `json:"early_departures"`
	Anomalies        int     `json:"anomalies"`
	Unscheduled      int     `json:"unscheduled"`
	AverageWorkHours float64 `json:"average_work_hours"`
}

type TodayStatusResponse struct {
	Summary SummaryResponse      `json:"summary"`
	Records []AttendanceResponse `json:"records"`
}

// ExportResponse is a tabular report ready for CSV, XLSX or PDF encoding.
type ExportResponse struct {
	// Filename has no extension.
	Filename string
	Title    string
	Headers  []string
	Rows     [][]string
}

// ========================================
// FILTER DTOs
// ========================================

type AttendanceFilter struct {
	UserID     *string `json:"user_id,omitempty"`
	Department *string `json:"department,omitempty"`
	Date       *string `json:"date,omitempty"`       // YYYY-MM-DD
	StartDate  *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate    *string `json:"end_date,omitempty"`   // YYYY-MM-DD

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`

	SortOrder string `json:"sort_order"` // asc, desc
}

func (f *AttendanceFilter) Validate() error {
	var errs validator.ValidationErrors

	errs = validatePaging(errs, &f.Page, &f.Limit, &f.SortOrder)
	errs = validateDate(errs, "date", f.Date)
	errs = validateDate(errs, "start_date", f.StartDate)
	errs = validateDate(errs, "end_date", f.EndDate)
	errs = validateRange(errs, f.StartDate, f.EndDate)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type MyAttendanceFilter struct {
	StartDate *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   *string `json:"end_date,omitempty"`   // YYYY-MM-DD

	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	SortOrder string `json:"sort_order"`
}

func (f *MyAttendanceFilter) Validate() error {
	var errs validator.ValidationErrors

	errs = validatePaging(errs, &f.Page, &f.Limit, &f.SortOrder)
	errs = validateDate(errs, "start_date", f.StartDate)
	errs = validateDate(errs, "end_date", f.EndDate)
	errs = validateRange(errs, f.StartDate, f.EndDate)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SummaryFilter struct {
	Date       *string `json:"date,omitempty"`
	Department *string `json:"department,omitempty"`
}

func (f *SummaryFilter) Validate() error {
	var errs validator.ValidationErrors
	errs = validateDate(errs, "date", f.Date)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ExportFilter struct {
	UserID     *string `json:"user_id,omitempty"`
	Department *string `json:"department,omitempty"`
	StartDate  *string `json:"start_date,omitempty"`
	EndDate    *string `json:"end_date,omitempty"`
}

func (f *ExportFilter) Validate() error {
	var errs validator.ValidationErrors
	errs = validateDate(errs, "start_date", f.StartDate)
	errs = validateDate(errs, "end_date", f.EndDate)
	errs = validateRange(errs, f.StartDate, f.EndDate)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePaging(errs validator.ValidationErrors, page, limit *int, sortOrder *string) validator.ValidationErrors {
	if *page < 0 {
		errs = append(errs, validator.ValidationError{Field: "page", Message: "page must be a positive number"})
	}
	if *page == 0 {
		*page = 1
	}

	if *limit < 0 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must be a positive number"})
	}
	if *limit == 0 {
		*limit = defaultPageLimit
	}
	if *limit > maxPageLimit {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "limit must not exceed 100"})
	}

	if *sortOrder == "" {
		*sortOrder = defaultSortOrder
	}
	*sortOrder = strings.ToLower(*sortOrder)
	if !validator.IsInSlice(*sortOrder, []string{"asc", "desc"}) {
		errs = append(errs, validator.ValidationError{Field: "sort_order", Message: "sort_order must be one of: asc, desc"})
	}
	return errs
}

func validateDate(errs validator.ValidationErrors, field string, value *string) validator.ValidationErrors {
	if value == nil || *value == "" {
		return errs
	}
	if _, valid := validator.IsValidDate(*value); !valid {
		errs = append(errs, validator.ValidationError{Field: field, Message: field + " must be in YYYY-MM-DD format"})
	}
	return errs
}

func validateRange(errs validator.ValidationErrors, start, end *string) validator.ValidationErrors {
	if start == nil || end == nil || *start == "" || *end == "" {
		return errs
	}
	s, okStart := validator.IsValidDate(*start)
	e, okEnd := validator.IsValidDate(*end)
	if okStart && okEnd && e.Before(s) {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "end_date must not be before start_date"})
	}
	return errs
}
