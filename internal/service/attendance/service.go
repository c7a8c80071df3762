package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/service/file"
)

// Geofence restricts office check-ins to a radius around the office.
type Geofence struct {
	Enabled      bool
	Center       geo.Coordinate
	RadiusMeters float64
}

// AddressResolver returns a display address, falling back to the coordinate string.
type AddressResolver interface {
	Resolve(ctx context.Context, c geo.Coordinate) string
}

type AttendanceServiceImpl struct {
	attendanceRepository attendance.AttendanceRepository
	rules                officehours.Resolver
	resolver             *Resolver
	sessions             location.SessionService
	addresses            AddressResolver
	fileService          file.FileService
	geofence             Geofence
	now                  func() time.Time
}

func NewAttendanceService(
	attendanceRepository attendance.AttendanceRepository,
	rules officehours.Resolver,
	resolver *Resolver,
	sessions location.SessionService,
	addresses AddressResolver,
	fileService file.FileService,
	geofence Geofence,
) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		attendanceRepository: attendanceRepository,
		rules:                rules,
		resolver:             resolver,
		sessions:             sessions,
		addresses:            addresses,
		fileService:          fileService,
		geofence:             geofence,
		now:                  time.Now,
	}
}

// CheckIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	identity, err := s.caller(ctx, req.UserID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := s.now()
	day := s.resolver.Day(now)

	existing, err := s.attendanceRepository.GetByUserAndDate(ctx, identity.UserID, day)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if existing != nil {
		return s.repeatCheckIn(*existing)
	}

	fix, err := s.fix(ctx, identity.UserID, req.GPSLocation, req.SessionID, now)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	workLocation := attendance.WorkLocation(req.WorkLocation)
	if err := s.checkGeofence(fix, workLocation); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	selfieURL, err := s.uploadSelfie(ctx, identity.UserID, day, req.Selfie, attendance.KindCheckIn)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	record := attendance.Record{
		UserID:           identity.UserID,
		EmployeeName:     identity.Name,
		Department:       identity.Department,
		Date:             day,
		CheckIn:          now.UTC(),
		CheckInFix:       fix.Copy(),
		CheckInSelfieURL: selfieURL,
		WorkLocation:     workLocation,
	}

	created, err := s.attendanceRepository.Create(ctx, record)
	if err != nil {
		s.discardSelfie(ctx, selfieURL)
		if errors.Is(err, attendance.ErrAttendanceExists) {
			// lost a race with a concurrent check-in for the same day
			existing, getErr := s.attendanceRepository.GetByUserAndDate(ctx, identity.UserID, day)
			if getErr == nil && existing != nil {
				return s.repeatCheckIn(*existing)
			}
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to create attendance record: %w", err)
	}

	s.releaseSession(ctx, identity.UserID, req.SessionID)

	status := s.status(created)
	metrics.AttendanceEventsTotal.WithLabelValues(string(attendance.KindCheckIn), string(status.Lateness)).Inc()
	slog.Info("Checked in",
		"attendance_id", created.ID,
		"user_id", created.UserID,
		"department", created.Department,
		"lateness", status.Lateness,
		"work_location", created.WorkLocation,
	)

	return attendance.NewAttendanceResponse(created, status, s.resolver.Location()), nil
}

// repeatCheckIn answers a second check-in on the same day.
func (s *AttendanceServiceImpl) repeatCheckIn(existing attendance.Record) (attendance.AttendanceResponse, error) {
	if !existing.IsOpen() {
		return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedOut
	}
	slog.Debug("Repeated check-in returns the open record", "attendance_id", existing.ID, "user_id", existing.UserID)
	return attendance.NewAttendanceResponse(existing, s.status(existing), s.resolver.Location()), nil
}

// CheckOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	identity, err := s.caller(ctx, req.UserID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := s.now()

	open, err := s.attendanceRepository.GetOpenByUser(ctx, identity.UserID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get open attendance: %w", err)
	}
	if open == nil {
		today, err := s.attendanceRepository.GetByUserAndDate(ctx, identity.UserID, s.resolver.Day(now))
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
		}
		if today != nil {
			return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedOut
		}
		return attendance.AttendanceResponse{}, attendance.ErrNotCheckedIn
	}
	record := *open

	fix, err := s.fix(ctx, identity.UserID, req.GPSLocation, req.SessionID, now)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	if err := s.checkGeofence(fix, record.WorkLocation); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	selfieURL, err := s.uploadSelfie(ctx, identity.UserID, record.Date, req.Selfie, attendance.KindCheckOut)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	checkOut := now.UTC()
	outFix := fix.Copy()
	summary := strings.TrimSpace(req.WorkSummary)
	record.CheckOut = &checkOut
	record.CheckOutFix = &outFix
	record.CheckOutSelfieURL = selfieURL
	record.WorkSummary = &summary
	record.WorkReport = req.WorkReport
	record.UpdatedAt = checkOut

	if err := s.attendanceRepository.UpdateCheckOut(ctx, record); err != nil {
		s.discardSelfie(ctx, selfieURL)
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	s.releaseSession(ctx, identity.UserID, req.SessionID)

	status := s.status(record)
	label := string(status.Earliness)
	if status.Anomaly {
		label = "anomaly"
	}
	metrics.AttendanceEventsTotal.WithLabelValues(string(attendance.KindCheckOut), label).Inc()
	if status.Anomaly {
		slog.Warn("Check-out not after check-in, worked minutes reported as zero",
			"attendance_id", record.ID,
			"check_in", record.CheckIn,
			"check_out", checkOut,
		)
	}
	slog.Info("Checked out",
		"attendance_id", record.ID,
		"user_id", record.UserID,
		"earliness", status.Earliness,
		"worked_minutes", status.WorkedMinutes,
	)

	return attendance.NewAttendanceResponse(record, status, s.resolver.Location()), nil
}

// Today implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Today(ctx context.Context) (attendance.TodayResponse, error) {
	identity, err := jwt.IdentityFromContext(ctx)
	if err != nil {
		return attendance.TodayResponse{}, err
	}

	now := s.now()
	day := s.resolver.Day(now)
	resp := attendance.TodayResponse{Date: day.Format(dateLayout)}

	if rule, ok := s.rules.Resolve(identity.Department); ok {
		ruleResp := officehours.NewRuleResponse(rule)
		resp.HasScheduleToday = true
		resp.Schedule = &attendance.ScheduleInfo{
			RuleID:      ruleResp.ID,
			Department:  ruleResp.Department,
			StartTime:   ruleResp.StartTime,
			EndTime:     ruleResp.EndTime,
			LateAfter:   ruleResp.LateAfter,
			EarlyBefore: ruleResp.EarlyBefore,
		}
	}

	record, err := s.attendanceRepository.GetByUserAndDate(ctx, identity.UserID, day)
	if err != nil {
		return attendance.TodayResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if record == nil {
		// an overnight shift may still be open from an earlier day
		record, err = s.attendanceRepository.GetOpenByUser(ctx, identity.UserID)
		if err != nil {
			return attendance.TodayResponse{}, fmt.Errorf("failed to get open attendance: %w", err)
		}
	}

	switch {
	case record == nil:
		resp.CanCheckIn = true
		resp.Message = "You have not checked in today"
	case record.IsOpen():
		resp.HasCheckedIn = s.resolver.Day(record.CheckIn).Equal(day)
		resp.CanCheckIn = !resp.HasCheckedIn
		resp.CanCheckOut = true
		resp.Message = "You are checked in"
	default:
		resp.HasCheckedIn = true
		resp.Message = "You have checked out for today"
	}

	if record != nil {
		r := attendance.NewAttendanceResponse(*record, s.status(*record), s.resolver.Location())
		resp.Attendance = &r
	}
	return resp, nil
}

// TodayStatus implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) TodayStatus(ctx context.Context) (attendance.TodayStatusResponse, error) {
	identity, err := s.reviewer(ctx)
	if err != nil {
		return attendance.TodayStatusResponse{}, err
	}

	department, err := scopeDepartment(identity, nil)
	if err != nil {
		return attendance.TodayStatusResponse{}, err
	}

	day := s.resolver.Day(s.now())
	records, _, err := s.attendanceRepository.List(ctx, attendance.ListFilter{
		Department: department,
		StartDate:  &day,
		EndDate:    &day,
		SortOrder:  "desc",
	})
	if err != nil {
		return attendance.TodayStatusResponse{}, fmt.Errorf("failed to list today's attendance: %w", err)
	}

	responses := make([]attendance.AttendanceResponse, 0, len(records))
	statuses := make([]attendance.Status, 0, len(records))
	for _, r := range records {
		status := s.status(r)
		statuses = append(statuses, status)
		responses = append(responses, attendance.NewAttendanceResponse(r, status, s.resolver.Location()))
	}

	return attendance.TodayStatusResponse{
		Summary: summarize(day, department, records, statuses),
		Records: responses,
	}, nil
}

// GetUserAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetUserAttendance(ctx context.Context, userID string, filter attendance.MyAttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	identity, err := jwt.IdentityFromContext(ctx)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	listFilter := attendance.ListFilter{
		UserID:    &userID,
		Page:      filter.Page,
		Limit:     filter.Limit,
		SortOrder: filter.SortOrder,
	}
	if userID != identity.UserID {
		if !identity.IsReviewer() {
			return attendance.ListAttendanceResponse{}, attendance.ErrForbidden
		}
		if listFilter.Department, err = scopeDepartment(identity, nil); err != nil {
			return attendance.ListAttendanceResponse{}, err
		}
	}
	if listFilter.StartDate, listFilter.EndDate, err = s.dateRange(nil, filter.StartDate, filter.EndDate); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	return s.list(ctx, listFilter)
}

// ListAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListAttendance(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	identity, err := s.reviewer(ctx)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	listFilter := attendance.ListFilter{
		UserID:    filter.UserID,
		Page:      filter.Page,
		Limit:     filter.Limit,
		SortOrder: filter.SortOrder,
	}
	if listFilter.Department, err = scopeDepartment(identity, filter.Department); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}
	if listFilter.StartDate, listFilter.EndDate, err = s.dateRange(filter.Date, filter.StartDate, filter.EndDate); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	return s.list(ctx, listFilter)
}

// Summary implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Summary(ctx context.Context, filter attendance.SummaryFilter) (attendance.SummaryResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.SummaryResponse{}, err
	}

	identity, err := s.reviewer(ctx)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}

	department, err := scopeDepartment(identity, filter.Department)
	if err != nil {
		return attendance.SummaryResponse{}, err
	}

	day := s.resolver.Day(s.now())
	if filter.Date != nil && *filter.Date != "" {
		if day, err = s.resolver.ParseDay(*filter.Date); err != nil {
			return attendance.SummaryResponse{}, err
		}
	}

	records, _, err := s.attendanceRepository.List(ctx, attendance.ListFilter{
		Department: department,
		StartDate:  &day,
		EndDate:    &day,
	})
	if err != nil {
		return attendance.SummaryResponse{}, fmt.Errorf("failed to list attendance for summary: %w", err)
	}

	statuses := make([]attendance.Status, 0, len(records))
	for _, r := range records {
		statuses = append(statuses, s.status(r))
	}
	return summarize(day, department, records, statuses), nil
}

// Export implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Export(ctx context.Context, filter attendance.ExportFilter) (attendance.ExportResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ExportResponse{}, err
	}

	identity, err := s.reviewer(ctx)
	if err != nil {
		return attendance.ExportResponse{}, err
	}

	listFilter := attendance.ListFilter{UserID: filter.UserID, SortOrder: "asc"}
	if listFilter.Department, err = scopeDepartment(identity, filter.Department); err != nil {
		return attendance.ExportResponse{}, err
	}
	if listFilter.StartDate, listFilter.EndDate, err = s.dateRange(nil, filter.StartDate, filter.EndDate); err != nil {
		return attendance.ExportResponse{}, err
	}

	records, _, err := s.attendanceRepository.List(ctx, listFilter)
	if err != nil {
		return attendance.ExportResponse{}, fmt.Errorf("failed to list attendance for export: %w", err)
	}

	resp := attendance.ExportResponse{
		Filename: exportFilename(listFilter.StartDate, listFilter.EndDate),
		Title:    "Attendance Report",
		Headers:  exportHeaders,
		Rows:     make([][]string, 0, len(records)),
	}
	for _, r := range records {
		resp.Rows = append(resp.Rows, s.exportRow(r, s.status(r)))
	}

	slog.Info("Attendance exported", "user_id", identity.UserID, "rows", len(resp.Rows))
	return resp, nil
}

// ==================== HELPERS ====================

// caller returns the authenticated user, rejecting a body user_id naming someone else.
func (s *AttendanceServiceImpl) caller(ctx context.Context, requestedUserID string) (user.Identity, error) {
	identity, err := jwt.IdentityFromContext(ctx)
	if err != nil {
		return user.Identity{}, err
	}
	if requestedUserID != "" && requestedUserID != identity.UserID {
		return user.Identity{}, attendance.ErrUserMismatch
	}
	return identity, nil
}

func (s *AttendanceServiceImpl) reviewer(ctx context.Context) (user.Identity, error) {
	identity, err := jwt.IdentityFromContext(ctx)
	if err != nil {
		return user.Identity{}, err
	}
	if !identity.IsReviewer() {
		return user.Identity{}, attendance.ErrForbidden
	}
	return identity, nil
}

// scopeDepartment limits department reviewers to their own department. Admin and HR may
// narrow to any requested department or see all.
func scopeDepartment(identity user.Identity, requested *string) (*string, error) {
	if identity.SeesAllDepartments() {
		if requested == nil || strings.TrimSpace(*requested) == "" {
			return nil, nil
		}
		d := strings.TrimSpace(*requested)
		return &d, nil
	}
	own := strings.TrimSpace(identity.Department)
	if own == "" {
		return nil, user.ErrDepartmentRequired
	}
	return &own, nil
}

// dateRange parses filter dates; a single date wins over a range.
func (s *AttendanceServiceImpl) dateRange(date, start, end *string) (*time.Time, *time.Time, error) {
	parse := func(v *string) (*time.Time, error) {
		if v == nil || *v == "" {
			return nil, nil
		}
		d, err := s.resolver.ParseDay(*v)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}

	if date != nil && *date != "" {
		d, err := parse(date)
		return d, d, err
	}
	from, err := parse(start)
	if err != nil {
		return nil, nil, err
	}
	to, err := parse(end)
	return from, to, err
}

func (s *AttendanceServiceImpl) list(ctx context.Context, filter attendance.ListFilter) (attendance.ListAttendanceResponse, error) {
	records, total, err := s.attendanceRepository.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendance: %w", err)
	}

	responses := make([]attendance.AttendanceResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, attendance.NewAttendanceResponse(r, s.status(r), s.resolver.Location()))
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	showing := fmt.Sprintf("%d-%d of %d", (filter.Page-1)*filter.Limit+1, min(filter.Page*filter.Limit, int(total)), total)
	if total == 0 {
		showing = "0 of 0"
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  totalPages,
		Showing:     showing,
		Attendances: responses,
	}, nil
}

// status recomputes a record's status against the rule in force now.
func (s *AttendanceServiceImpl) status(record attendance.Record) attendance.Status {
	var rule *officehours.Rule
	if r, ok := s.rules.Resolve(record.Department); ok {
		rule = &r
	}
	return s.resolver.ResolveRecord(record, rule)
}

// fix picks the inline gps location or copies the session's best fix, then fills in a
// missing address. Geocoding failures fall back to the coordinate string.
func (s *AttendanceServiceImpl) fix(ctx context.Context, userID string, gps *attendance.LocationInput, sessionID *string, now time.Time) (location.LocationFix, error) {
	var fix location.LocationFix
	if gps != nil {
		fix = gps.Fix(now)
	} else {
		best, err := s.sessions.BestFix(ctx, userID, strings.TrimSpace(*sessionID))
		if err != nil {
			return location.LocationFix{}, err
		}
		fix = best
	}

	if fix.Address == nil {
		fix = fix.WithAddress(s.addresses.Resolve(ctx, fix.Coordinate))
	}
	return fix, nil
}

func (s *AttendanceServiceImpl) checkGeofence(fix location.LocationFix, workLocation attendance.WorkLocation) error {
	if !s.geofence.Enabled || workLocation == attendance.WorkLocationWorkFromHome {
		return nil
	}
	distance := geo.DistanceMeters(fix.Coordinate, s.geofence.Center)
	if !geo.WithinRadius(fix.Coordinate, s.geofence.Center, s.geofence.RadiusMeters) {
		slog.Info("Attendance rejected outside geofence", "distance_meters", math.Round(distance), "radius_meters", s.geofence.RadiusMeters)
		return fmt.Errorf("%w: %.0f m from the office, allowed %.0f m", attendance.ErrOutsideAllowedRadius, distance, s.geofence.RadiusMeters)
	}
	return nil
}

func (s *AttendanceServiceImpl) uploadSelfie(ctx context.Context, userID string, day time.Time, selfie attendance.Selfie, kind attendance.Kind) (*string, error) {
	if !selfie.Present() {
		return nil, nil
	}
	reader, filename, err := selfie.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read selfie: %w", err)
	}
	url, err := s.fileService.UploadAttendanceSelfie(ctx, userID, day, reader, filename, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to upload selfie: %w", err)
	}
	return &url, nil
}

func (s *AttendanceServiceImpl) discardSelfie(ctx context.Context, url *string) {
	if url == nil {
		return
	}
	if err := s.fileService.DeleteFile(ctx, *url); err != nil {
		slog.Warn("Failed to remove orphaned selfie", "url", *url, "error", err)
	}
}

// releaseSession closes a consumed location session. Failure only leaves it for the reaper.
func (s *AttendanceServiceImpl) releaseSession(ctx context.Context, userID string, sessionID *string) {
	if sessionID == nil || strings.TrimSpace(*sessionID) == "" {
		return
	}
	if err := s.sessions.Close(ctx, userID, strings.TrimSpace(*sessionID)); err != nil && !errors.Is(err, location.ErrSessionNotFound) {
		slog.Warn("Failed to close location session", "session_id", *sessionID, "error", err)
	}
}

func summarize(day time.Time, department *string, records []attendance.Record, statuses []attendance.Status) attendance.SummaryResponse {
	resp := attendance.SummaryResponse{Date: day.Format(dateLayout), Department: department}
	users := make(map[string]struct{}, len(records))
	var workedTotal, workedCount int

	for i, r := range records {
		status := statuses[i]
		users[r.UserID] = struct{}{}
		if r.IsOpen() {
			resp.StillCheckedIn++
		} else {
			resp.CheckedOut++
		}
		if !status.Scheduled {
			resp.Unscheduled++
		}
		if status.Lateness == attendance.LatenessLate {
			resp.LateArrivals++
		}
		if !r.IsOpen() && status.Earliness == attendance.EarlinessEarly {
			resp.EarlyDepartures++
		}
		if status.Anomaly {
			resp.Anomalies++
		}
		if status.WorkedMinutes != nil && !status.Anomaly {
			workedTotal += *status.WorkedMinutes
			workedCount++
		}
	}

	resp.Present = len(users)
	if workedCount > 0 {
		resp.AverageWorkHours = math.Round(float64(workedTotal)/float64(workedCount)/60*100) / 100
	}
	return resp
}

var exportHeaders = []string{
	"Attendance ID", "User ID", "Name", "Department", "Date", "Check In", "Check Out",
	"Total Hours (hrs)", "Lateness", "Earliness", "Work Location", "GPS", "Selfie",
}

func (s *AttendanceServiceImpl) exportRow(r attendance.Record, status attendance.Status) []string {
	const clock = "2006-01-02 15:04:05"

	checkOut := ""
	if r.CheckOut != nil {
		checkOut = s.resolver.Local(*r.CheckOut).Format(clock)
	}
	hours := ""
	if status.WorkedMinutes != nil {
		hours = fmt.Sprintf("%.2f", float64(*status.WorkedMinutes)/60)
	}
	earliness := ""
	if !r.IsOpen() {
		earliness = string(status.Earliness)
	}
	gps := r.CheckInFix.Coordinate.String()
	if r.CheckInFix.Address != nil {
		gps = *r.CheckInFix.Address
	}
	selfie := ""
	if r.CheckInSelfieURL != nil {
		selfie = *r.CheckInSelfieURL
	}

	return []string{
		r.ID,
		r.UserID,
		r.EmployeeName,
		r.Department,
		r.Date.Format(dateLayout),
		s.resolver.Local(r.CheckIn).Format(clock),
		checkOut,
		hours,
		string(status.Lateness),
		earliness,
		string(r.WorkLocation),
		gps,
		selfie,
	}
}

// exportFilename follows attendance_report[_from|_until]_YYYYMMDD naming.
func exportFilename(start, end *time.Time) string {
	const compact = "20060102"
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf("attendance_report_%s_%s", start.Format(compact), end.Format(compact))
	case start != nil:
		return fmt.Sprintf("attendance_report_from_%s", start.Format(compact))
	case end != nil:
		return fmt.Sprintf("attendance_report_until_%s", end.Format(compact))
	}
	return "attendance_report"
}
