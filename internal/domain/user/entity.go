package user

import "strings"

type Role string

const (
	RoleAdmin    Role = "admin"     // Full access, configures office hours
	RoleHR       Role = "hr"        // Configures office hours, sees every department
	RoleManager  Role = "manager"   // Sees own department
	RoleTeamLead Role = "team_lead" // Sees own department
	RoleEmployee Role = "employee"  // Checks in and out
)

// ParseRole accepts the role names issued by the identity provider in any casing.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleHR:
		return RoleHR, true
	case RoleManager:
		return RoleManager, true
	case RoleTeamLead, "teamlead", "team-lead":
		return RoleTeamLead, true
	case RoleEmployee:
		return RoleEmployee, true
	}
	return "", false
}

// Identity is the authenticated caller as carried in the access token.
type Identity struct {
	UserID     string
	Name       string
	Email      string
	Department string
	Role       Role
}

// SeesAllDepartments reports whether the caller may read attendance across departments.
func (i Identity) SeesAllDepartments() bool {
	return i.Role == RoleAdmin || i.Role == RoleHR
}

// IsReviewer reports whether the caller may read other people's attendance.
func (i Identity) IsReviewer() bool {
	return HasPermission(i.Role, PermissionAttendanceViewAll)
}
