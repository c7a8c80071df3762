package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
)

const (
	reloadTimeout = 30 * time.Second
	reapTimeout   = 10 * time.Second
)

// AttendanceJobs keeps the in-memory attendance state in line with the database and
// releases abandoned location sessions.
type AttendanceJobs struct {
	officeHoursService officehours.OfficeHoursService
	sessionService     location.SessionService
}

func NewAttendanceJobs(officeHoursService officehours.OfficeHoursService, sessionService location.SessionService) *AttendanceJobs {
	return &AttendanceJobs{
		officeHoursService: officeHoursService,
		sessionService:     sessionService,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, reloadInterval, reapInterval time.Duration) {
	scheduler.AddJob(Job{
		Name:     "reload_office_hours",
		Interval: reloadInterval,
		Timeout:  reloadTimeout,
		Fn:       j.ReloadOfficeHours,
	})
	scheduler.AddJob(Job{
		Name:     "reap_idle_location_sessions",
		Interval: reapInterval,
		Timeout:  reapTimeout,
		Fn:       j.ReapIdleSessions,
	})
}

// ReloadOfficeHours picks up rules changed by other instances. A rejected rule set
// leaves the current one active.
func (j *AttendanceJobs) ReloadOfficeHours(ctx context.Context) error {
	if err := j.officeHoursService.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload office hours: %w", err)
	}
	slog.Debug("Cron: Office hours reloaded")
	return nil
}

func (j *AttendanceJobs) ReapIdleSessions(ctx context.Context) error {
	if err := j.sessionService.ReapIdle(ctx); err != nil {
		return fmt.Errorf("failed to reap idle sessions: %w", err)
	}
	return nil
}
