package officehours

import (
	"strings"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const maxGraceMinutes = 720

type UpsertRuleRequest struct {
	Department           *string `json:"department"`
	StartTime            string  `json:"start_time"`
	EndTime              string  `json:"end_time"`
	CheckInGraceMinutes  int     `json:"check_in_grace_minutes"`
	CheckOutGraceMinutes int     `json:"check_out_grace_minutes"`
}

func (r *UpsertRuleRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Department != nil && len(strings.TrimSpace(*r.Department)) > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "department",
			Message: "department must not exceed 100 characters",
		})
	}

	start, startErr := ParseLocalTime(r.StartTime)
	if startErr != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "start_time",
			Message: "start_time must be in HH:MM format",
		})
	}

	end, endErr := ParseLocalTime(r.EndTime)
	if endErr != nil {
		errs = append(errs, validator.ValidationError{
			Field:   "end_time",
			Message: "end_time must be in HH:MM format",
		})
	}

	if startErr == nil && endErr == nil && end.Minutes() <= start.Minutes() {
		errs = append(errs, validator.ValidationError{
			Field:   "end_time",
			Message: ErrInvalidTimeRange.Error(),
		})
	}

	if r.CheckInGraceMinutes < 0 || r.CheckInGraceMinutes > maxGraceMinutes {
		errs = append(errs, validator.ValidationError{
			Field:   "check_in_grace_minutes",
			Message: "check_in_grace_minutes must be between 0 and 720",
		})
	}

	if r.CheckOutGraceMinutes < 0 || r.CheckOutGraceMinutes > maxGraceMinutes {
		errs = append(errs, validator.ValidationError{
			Field:   "check_out_grace_minutes",
			Message: "check_out_grace_minutes must be between 0 and 720",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Rule converts a validated request. A blank department becomes the global rule.
func (r *UpsertRuleRequest) Rule() Rule {
	start, _ := ParseLocalTime(r.StartTime)
	end, _ := ParseLocalTime(r.EndTime)

	rule := Rule{
		StartTime:            start,
		EndTime:              end,
		CheckInGraceMinutes:  r.CheckInGraceMinutes,
		CheckOutGraceMinutes: r.CheckOutGraceMinutes,
	}
	if r.Department != nil {
		if d := strings.TrimSpace(*r.Department); d != "" {
			rule.Department = &d
		}
	}
	return rule
}

type RuleResponse struct {
	ID                   string  `json:"id"`
	Department           *string `json:"department"`
	IsGlobal             bool    `json:"is_global"`
	StartTime            string  `json:"start_time"`
	EndTime              string  `json:"end_time"`
	CheckInGraceMinutes  int     `json:"check_in_grace_minutes"`
	CheckOutGraceMinutes int     `json:"check_out_grace_minutes"`
	LateAfter            string  `json:"late_after"`
	EarlyBefore          string  `json:"early_before"`
}

func NewRuleResponse(r Rule) RuleResponse {
	c := r.Clone()
	return RuleResponse{
		ID:                   c.ID,
		Department:           c.Department,
		IsGlobal:             c.IsGlobal(),
		StartTime:            c.StartTime.String(),
		EndTime:              c.EndTime.String(),
		CheckInGraceMinutes:  c.CheckInGraceMinutes,
		CheckOutGraceMinutes: c.CheckOutGraceMinutes,
		LateAfter:            addMinutes(c.StartTime, c.CheckInGraceMinutes).String(),
		EarlyBefore:          addMinutes(c.EndTime, -c.CheckOutGraceMinutes).String(),
	}
}

type ListRulesResponse struct {
	Global      *RuleResponse  `json:"global"`
	Departments []RuleResponse `json:"departments"`
}

type DeleteRuleResponse struct {
	Removed RuleResponse `json:"removed"`
	// Defaults is the global rule the department now falls back to, nil when none is configured.
	Defaults *RuleResponse `json:"defaults"`
}

// addMinutes shifts t by delta minutes, wrapping within a day.
func addMinutes(t LocalTime, delta int) LocalTime {
	m := ((t.Minutes()+delta)%1440 + 1440) % 1440
	return LocalTime{Hour: m / 60, Minute: m % 60}
}
