package user

type Permission string

const (
	// Attendance
	PermissionAttendanceViewOwn Permission = "attendance.view_own"
	PermissionAttendanceCreate  Permission = "attendance.create"
	PermissionAttendanceViewAll Permission = "attendance.view_all"
	PermissionAttendanceExport  Permission = "attendance.export"

	// Office hours
	PermissionOfficeHoursView   Permission = "office_hours.view"
	PermissionOfficeHoursManage Permission = "office_hours.manage"

	// Location sessions
	PermissionLocationAcquire Permission = "location.acquire"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceCreate,
		PermissionAttendanceViewAll,
		PermissionAttendanceExport,
		PermissionOfficeHoursView,
		PermissionOfficeHoursManage,
		PermissionLocationAcquire,
	},
	RoleHR: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceCreate,
		PermissionAttendanceViewAll,
		PermissionAttendanceExport,
		PermissionOfficeHoursView,
		PermissionOfficeHoursManage,
		PermissionLocationAcquire,
	},
	RoleManager: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceCreate,
		PermissionAttendanceViewAll,
		PermissionAttendanceExport,
		PermissionOfficeHoursView,
		PermissionLocationAcquire,
	},
	RoleTeamLead: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceCreate,
		PermissionAttendanceViewAll,
		PermissionAttendanceExport,
		PermissionOfficeHoursView,
		PermissionLocationAcquire,
	},
	RoleEmployee: {
		PermissionAttendanceViewOwn,
		PermissionAttendanceCreate,
		PermissionOfficeHoursView,
		PermissionLocationAcquire,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
