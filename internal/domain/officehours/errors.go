package officehours

import "errors"

var (
	ErrRuleNotFound            = errors.New("office hours rule not found")
	ErrDuplicateGlobalRule     = errors.New("more than one global office hours rule configured")
	ErrDuplicateDepartmentRule = errors.New("more than one office hours rule for the same department")
	ErrInvalidTimeRange        = errors.New("office end time must be after start time")
)
