package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type officeHoursRepository struct {
	db *database.DB
}

func NewOfficeHoursRepository(db *database.DB) officehours.RuleRepository {
	return &officeHoursRepository{db: db}
}

const officeHoursColumns = `
	id, department, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	check_in_grace_minutes, check_out_grace_minutes, created_at, updated_at
`

func scanRule(row pgx.Row) (officehours.Rule, error) {
	var (
		rule       officehours.Rule
		start, end string
	)
	if err := row.Scan(
		&rule.ID, &rule.Department, &start, &end,
		&rule.CheckInGraceMinutes, &rule.CheckOutGraceMinutes, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return officehours.Rule{}, err
	}

	var err error
	if rule.StartTime, err = officehours.ParseLocalTime(start); err != nil {
		return officehours.Rule{}, err
	}
	if rule.EndTime, err = officehours.ParseLocalTime(end); err != nil {
		return officehours.Rule{}, err
	}
	return rule, nil
}

// List implements officehours.RuleRepository.
func (r *officeHoursRepository) List(ctx context.Context) ([]officehours.Rule, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + officeHoursColumns + ` FROM office_hours ORDER BY department_key`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list office hours: %w", err)
	}
	defer rows.Close()

	var rules []officehours.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan office hours: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating office hours: %w", err)
	}

	return rules, nil
}

// Upsert implements officehours.RuleRepository.
func (r *officeHoursRepository) Upsert(ctx context.Context, rule officehours.Rule) (officehours.Rule, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO office_hours (
			department, department_key, start_time, end_time,
			check_in_grace_minutes, check_out_grace_minutes
		) VALUES ($1, $2, $3::time, $4::time, $5, $6)
		ON CONFLICT (department_key) DO UPDATE SET
			department = EXCLUDED.department,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			check_in_grace_minutes = EXCLUDED.check_in_grace_minutes,
			check_out_grace_minutes = EXCLUDED.check_out_grace_minutes,
			updated_at = NOW()
		RETURNING ` + officeHoursColumns

	var department *string
	if !rule.IsGlobal() {
		department = rule.Department
	}

	saved, err := scanRule(q.QueryRow(ctx, query,
		department,
		rule.Key(),
		rule.StartTime.String(),
		rule.EndTime.String(),
		rule.CheckInGraceMinutes,
		rule.CheckOutGraceMinutes,
	))
	if err != nil {
		return officehours.Rule{}, fmt.Errorf("failed to upsert office hours: %w", err)
	}

	return saved, nil
}

// Delete implements officehours.RuleRepository.
func (r *officeHoursRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM office_hours WHERE id = $1`, id)
	if err != nil {
		if isInvalidUUID(err) {
			return officehours.ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete office hours: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return officehours.ErrRuleNotFound
	}

	return nil
}
