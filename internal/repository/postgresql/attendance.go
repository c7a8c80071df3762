package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/jackc/pgx/v5"
)

const dateLayout = "2006-01-02"

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `
	a.id, a.user_id, a.employee_name, a.department, a.date,
	a.check_in, a.check_out,
	a.check_in_latitude, a.check_in_longitude, a.check_in_accuracy, a.check_in_address, a.check_in_captured_at,
	a.check_out_latitude, a.check_out_longitude, a.check_out_accuracy, a.check_out_address, a.check_out_captured_at,
	a.check_in_selfie_url, a.check_out_selfie_url,
	a.work_location, a.work_summary, a.work_report,
	a.created_at, a.updated_at
`

func scanAttendance(row pgx.Row) (attendance.Record, error) {
	var (
		r            attendance.Record
		workLocation string
		outLat       *float64
		outLon       *float64
		outAccuracy  *float64
		outAddress   *string
		outCaptured  *time.Time
	)

	err := row.Scan(
		&r.ID, &r.UserID, &r.EmployeeName, &r.Department, &r.Date,
		&r.CheckIn, &r.CheckOut,
		&r.CheckInFix.Coordinate.Latitude, &r.CheckInFix.Coordinate.Longitude,
		&r.CheckInFix.AccuracyMeters, &r.CheckInFix.Address, &r.CheckInFix.CapturedAt,
		&outLat, &outLon, &outAccuracy, &outAddress, &outCaptured,
		&r.CheckInSelfieURL, &r.CheckOutSelfieURL,
		&workLocation, &r.WorkSummary, &r.WorkReport,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}

	r.WorkLocation = attendance.WorkLocation(workLocation)
	if outLat != nil && outLon != nil {
		fix := location.NewFix(geo.Coordinate{Latitude: *outLat, Longitude: *outLon}, outAccuracy, r.CheckIn)
		if outCaptured != nil {
			fix.CapturedAt = *outCaptured
		}
		fix.Address = outAddress
		r.CheckOutFix = &fix
	}

	return r, nil
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendances (
			user_id, employee_name, department, date, check_in,
			check_in_latitude, check_in_longitude, check_in_accuracy, check_in_address, check_in_captured_at,
			check_in_selfie_url, work_location
		) VALUES (
			$1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING id, created_at, updated_at
	`

	fix := record.CheckInFix
	err := q.QueryRow(ctx, query,
		record.UserID,
		record.EmployeeName,
		record.Department,
		record.Date.Format(dateLayout),
		record.CheckIn,
		fix.Coordinate.Latitude,
		fix.Coordinate.Longitude,
		fix.AccuracyMeters,
		fix.Address,
		fix.CapturedAt,
		record.CheckInSelfieURL,
		string(record.WorkLocation),
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrAttendanceExists
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return record, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendances a WHERE a.id = $1`

	record, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return attendance.Record{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get attendance by ID: %w", err)
	}

	return record, nil
}

// GetByUserAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByUserAndDate(ctx context.Context, userID string, date time.Time) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.user_id = $1
		  AND a.date = $2::date
		LIMIT 1
	`

	record, err := scanAttendance(q.QueryRow(ctx, query, userID, date.Format(dateLayout)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No existing attendance found
		}
		return nil, fmt.Errorf("failed to get attendance by user and date: %w", err)
	}

	return &record, nil
}

// GetOpenByUser implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenByUser(ctx context.Context, userID string) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.user_id = $1
		  AND a.check_out IS NULL
		ORDER BY a.check_in DESC
		LIMIT 1
	`

	record, err := scanAttendance(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open attendance: %w", err)
	}

	return &record, nil
}

// UpdateCheckOut implements attendance.AttendanceRepository. The row is locked so two
// concurrent check-outs cannot both close it.
func (a *attendanceRepository) UpdateCheckOut(ctx context.Context, record attendance.Record) error {
	if record.CheckOut == nil || record.CheckOutFix == nil {
		return fmt.Errorf("update check-out: record %s has no check-out", record.ID)
	}

	return WithTransaction(ctx, a.db, func(tx pgx.Tx) error {
		q := GetQuerier(ContextWithTx(ctx, tx), a.db)

		var existing *time.Time
		err := q.QueryRow(ctx, `SELECT check_out FROM attendances WHERE id = $1 FOR UPDATE`, record.ID).Scan(&existing)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return attendance.ErrAttendanceNotFound
			}
			return fmt.Errorf("failed to lock attendance: %w", err)
		}
		if existing != nil {
			return attendance.ErrAlreadyCheckedOut
		}

		query := `
			UPDATE attendances SET
				check_out = $1,
				check_out_latitude = $2,
				check_out_longitude = $3,
				check_out_accuracy = $4,
				check_out_address = $5,
				check_out_captured_at = $6,
				check_out_selfie_url = $7,
				work_summary = $8,
				work_report = $9,
				updated_at = NOW()
			WHERE id = $10
		`

		fix := record.CheckOutFix
		if _, err := q.Exec(ctx, query,
			*record.CheckOut,
			fix.Coordinate.Latitude,
			fix.Coordinate.Longitude,
			fix.AccuracyMeters,
			fix.Address,
			fix.CapturedAt,
			record.CheckOutSelfieURL,
			record.WorkSummary,
			record.WorkReport,
			record.ID,
		); err != nil {
			return fmt.Errorf("failed to update check-out: %w", err)
		}
		return nil
	})
}

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.ListFilter) ([]attendance.Record, int64, error) {
	q := GetQuerier(ctx, a.db)

	// Build WHERE clause
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.UserID != nil && *filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.Department != nil && *filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(a.department) = LOWER($%d)", argIdx))
		args = append(args, strings.TrimSpace(*filter.Department))
		argIdx++
	}

	// Date range filters
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d::date", argIdx))
		args = append(args, filter.StartDate.Format(dateLayout))
		argIdx++
	}

	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d::date", argIdx))
		args = append(args, filter.EndDate.Format(dateLayout))
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendances a %s", where)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM attendances a %s ORDER BY a.check_in %s`, attendanceColumns, where, sortOrder)
	if filter.Limit > 0 {
		page := max(filter.Page, 1)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, (page-1)*filter.Limit)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		record, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating attendances: %w", err)
	}

	return records, total, nil
}
