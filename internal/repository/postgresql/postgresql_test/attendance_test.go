package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

func newRecord(userID, department string, checkIn time.Time) attendance.Record {
	y, m, d := checkIn.In(wib).Date()
	acc := 10.0
	return attendance.Record{
		UserID:       userID,
		EmployeeName: "Test " + userID,
		Department:   department,
		Date:         time.Date(y, m, d, 0, 0, 0, 0, wib),
		CheckIn:      checkIn.UTC(),
		CheckInFix:   location.NewFix(geo.Coordinate{Latitude: -6.2, Longitude: 106.8}, &acc, checkIn),
		WorkLocation: attendance.WorkLocationOffice,
	}
}

func TestAttendanceRepository_Lifecycle(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	checkIn := time.Date(2025, 3, 10, 9, 46, 0, 0, wib)
	created, err := repo.Create(ctx, newRecord("u-1", "Engineering", checkIn))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, newRecord("u-1", "Engineering", checkIn.Add(time.Hour)))
	assert.ErrorIs(t, err, attendance.ErrAttendanceExists)

	open, err := repo.GetOpenByUser(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, created.ID, open.ID)
	assert.True(t, open.IsOpen())
	assert.Nil(t, open.CheckOutFix)
	require.NotNil(t, open.CheckInFix.AccuracyMeters)
	assert.Equal(t, 10.0, *open.CheckInFix.AccuracyMeters)

	checkOut := time.Date(2025, 3, 10, 18, 0, 0, 0, wib).UTC()
	outFix := location.NewFix(geo.Coordinate{Latitude: -6.21, Longitude: 106.81}, nil, checkOut).WithAddress("Jl. Sudirman")
	summary := "Closed sprint tickets"
	open.CheckOut = &checkOut
	open.CheckOutFix = &outFix
	open.WorkSummary = &summary
	require.NoError(t, repo.UpdateCheckOut(ctx, *open))

	err = repo.UpdateCheckOut(ctx, *open)
	assert.ErrorIs(t, err, attendance.ErrAlreadyCheckedOut)

	got, err := repo.GetByUserAndDate(ctx, "u-1", time.Date(2025, 3, 10, 0, 0, 0, 0, wib))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.CheckOut)
	assert.True(t, got.CheckOut.Equal(checkOut))
	require.NotNil(t, got.CheckOutFix)
	assert.Equal(t, "Jl. Sudirman", *got.CheckOutFix.Address)
	assert.Equal(t, summary, *got.WorkSummary)

	none, err := repo.GetOpenByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)
}

func TestAttendanceRepository_List(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewAttendanceRepository(setup.DB)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 9, 0, 0, 0, wib)
	for i, r := range []attendance.Record{
		newRecord("u-1", "Engineering", day),
		newRecord("u-2", "engineering", day.Add(10*time.Minute)),
		newRecord("u-3", "Sales", day.Add(20*time.Minute)),
		newRecord("u-1", "Engineering", day.AddDate(0, 0, 1)),
	} {
		_, err := repo.Create(ctx, r)
		require.NoError(t, err, "record %d", i)
	}

	dept := "ENGINEERING"
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, wib)
	records, total, err := repo.List(ctx, attendance.ListFilter{Department: &dept, StartDate: &start, EndDate: &start, SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, "u-1", records[0].UserID)

	records, total, err = repo.List(ctx, attendance.ListFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, records, 1)
	assert.Equal(t, "u-1", records[0].UserID, "oldest last when sorted descending")
}

func TestOfficeHoursRepository_Upsert(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewOfficeHoursRepository(setup.DB)
	ctx := context.Background()

	start, _ := officehours.ParseLocalTime("09:30")
	end, _ := officehours.ParseLocalTime("18:00")
	global, err := repo.Upsert(ctx, officehours.Rule{StartTime: start, EndTime: end, CheckInGraceMinutes: 15})
	require.NoError(t, err)
	assert.True(t, global.IsGlobal())

	dept := "Engineering"
	first, err := repo.Upsert(ctx, officehours.Rule{Department: &dept, StartTime: start, EndTime: end})
	require.NoError(t, err)

	renamed := "  engineering "
	later, _ := officehours.ParseLocalTime("10:00")
	second, err := repo.Upsert(ctx, officehours.Rule{Department: &renamed, StartTime: later, EndTime: end, CheckOutGraceMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same normalized department keeps its id")
	assert.Equal(t, "10:00", second.StartTime.String())

	rules, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	require.NoError(t, repo.Delete(ctx, second.ID))
	assert.ErrorIs(t, repo.Delete(ctx, second.ID), officehours.ErrRuleNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "bogus"), officehours.ErrRuleNotFound)
}
