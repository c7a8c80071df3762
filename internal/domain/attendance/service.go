package attendance

import (
	"context"
)

// AttendanceService defines business logic for attendance operations. The caller is read
// from the access token in ctx.
type AttendanceService interface {
	// CheckIn records the caller's arrival; repeating it on the same day returns the open record
	CheckIn(ctx context.Context, req CheckInRequest) (AttendanceResponse, error)

	// CheckOut closes the caller's open record
	CheckOut(ctx context.Context, req CheckOutRequest) (AttendanceResponse, error)

	// Today reports the caller's own attendance state for the current local day
	Today(ctx context.Context) (TodayResponse, error)

	// TodayStatus lists today's records visible to a reviewer, with a summary
	TodayStatus(ctx context.Context) (TodayStatusResponse, error)

	// GetUserAttendance lists one user's records (self or reviewer)
	GetUserAttendance(ctx context.Context, userID string, filter MyAttendanceFilter) (ListAttendanceResponse, error)

	// ListAttendance lists records across users (reviewer)
	ListAttendance(ctx context.Context, filter AttendanceFilter) (ListAttendanceResponse, error)

	// Summary aggregates one day's records (reviewer)
	Summary(ctx context.Context, filter SummaryFilter) (SummaryResponse, error)

	// Export builds the attendance report table (reviewer)
	Export(ctx context.Context, filter ExportFilter) (ExportResponse, error)
}
