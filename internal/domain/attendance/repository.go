package attendance

import (
	"context"
	"time"
)

// ListFilter narrows record queries. Dates are local attendance days, inclusive.
type ListFilter struct {
	UserID     *string
	Department *string
	StartDate  *time.Time
	EndDate    *time.Time

	// Zero Limit returns every match.
	Page      int
	Limit     int
	SortOrder string
}

// AttendanceRepository defines data access methods for attendance records.
type AttendanceRepository interface {
	// Create creates a new attendance record
	Create(ctx context.Context, record Record) (Record, error)

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id string) (Record, error)

	// GetByUserAndDate retrieves the user's record for a local day, nil when none exists.
	// Used to keep check-in idempotent
	GetByUserAndDate(ctx context.Context, userID string, date time.Time) (*Record, error)

	// GetOpenByUser retrieves the user's most recent record without a check-out, nil when none exists
	GetOpenByUser(ctx context.Context, userID string) (*Record, error)

	// UpdateCheckOut stores the check-out fields of record
	UpdateCheckOut(ctx context.Context, record Record) error

	// List retrieves records with filters and pagination
	List(ctx context.Context, filter ListFilter) ([]Record, int64, error)
}
