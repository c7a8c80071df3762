package officehours

import "context"

// RuleRepository persists office-hours rules. Rules are unique per normalized department,
// with the empty key reserved for the global rule.
type RuleRepository interface {
	// List returns every stored rule
	List(ctx context.Context) ([]Rule, error)

	// Upsert inserts the rule or replaces the one with the same normalized department,
	// keeping its ID
	Upsert(ctx context.Context, rule Rule) (Rule, error)

	// Delete removes a rule by ID
	Delete(ctx context.Context, id string) error
}
