package user

import "errors"

var (
	ErrIdentityMissing         = errors.New("authenticated user is missing from the request")
	ErrUnknownRole             = errors.New("unknown role")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrDepartmentRequired      = errors.New("a department must be assigned to view department attendance")
)
