package officehours

import "context"

// Resolver finds the rule governing a department.
type Resolver interface {
	Resolve(department string) (Rule, bool)
}

type OfficeHoursService interface {
	// List returns the global rule and all department rules
	List(ctx context.Context) (ListRulesResponse, error)

	// Upsert creates or replaces the rule for the request's department (global when empty)
	Upsert(ctx context.Context, req UpsertRuleRequest) (RuleResponse, error)

	// Delete removes a rule and reports the global defaults the department falls back to
	Delete(ctx context.Context, id string) (DeleteRuleResponse, error)

	// Reload replaces the in-memory rules with the stored ones
	Reload(ctx context.Context) error

	Resolver
}
