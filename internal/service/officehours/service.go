package officehours

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
)

type OfficeHoursServiceImpl struct {
	ruleRepository officehours.RuleRepository
	registry       *Registry

	// writeMu orders repository writes and reloads so a reload never swaps in a
	// list read before a write it raced with.
	writeMu sync.Mutex
}

func NewOfficeHoursService(ruleRepository officehours.RuleRepository, registry *Registry) officehours.OfficeHoursService {
	return &OfficeHoursServiceImpl{
		ruleRepository: ruleRepository,
		registry:       registry,
	}
}

// List implements officehours.OfficeHoursService.
func (s *OfficeHoursServiceImpl) List(ctx context.Context) (officehours.ListRulesResponse, error) {
	resp := officehours.ListRulesResponse{Departments: []officehours.RuleResponse{}}
	for _, rule := range s.registry.Rules() {
		if rule.IsGlobal() {
			g := officehours.NewRuleResponse(rule)
			resp.Global = &g
			continue
		}
		resp.Departments = append(resp.Departments, officehours.NewRuleResponse(rule))
	}
	return resp, nil
}

// Upsert implements officehours.OfficeHoursService.
func (s *OfficeHoursServiceImpl) Upsert(ctx context.Context, req officehours.UpsertRuleRequest) (officehours.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return officehours.RuleResponse{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	saved, err := s.ruleRepository.Upsert(ctx, req.Rule())
	if err != nil {
		return officehours.RuleResponse{}, fmt.Errorf("failed to save office hours rule: %w", err)
	}

	rule := s.registry.Upsert(saved)
	slog.Info("Office hours rule saved", "rule_id", rule.ID, "department", rule.Key(), "start", rule.StartTime.String(), "end", rule.EndTime.String())
	return officehours.NewRuleResponse(rule), nil
}

// Delete implements officehours.OfficeHoursService.
func (s *OfficeHoursServiceImpl) Delete(ctx context.Context, id string) (officehours.DeleteRuleResponse, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.ruleRepository.Delete(ctx, id); err != nil {
		return officehours.DeleteRuleResponse{}, err
	}

	removed, ok := s.registry.Remove(id)
	if !ok {
		// stored but not yet loaded; the next reload would drop it anyway
		slog.Warn("Deleted office hours rule was not in the registry", "rule_id", id)
		removed = officehours.Rule{ID: id}
	}

	resp := officehours.DeleteRuleResponse{Removed: officehours.NewRuleResponse(removed)}
	if global, ok := s.registry.Global(); ok {
		g := officehours.NewRuleResponse(global)
		resp.Defaults = &g
	}
	return resp, nil
}

// Reload implements officehours.OfficeHoursService.
func (s *OfficeHoursServiceImpl) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rules, err := s.ruleRepository.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list office hours rules: %w", err)
	}
	if err := s.registry.Load(rules); err != nil {
		return fmt.Errorf("failed to load office hours rules: %w", err)
	}
	slog.Debug("Office hours rules reloaded", "count", len(rules))
	return nil
}

// Resolve implements officehours.Resolver.
func (s *OfficeHoursServiceImpl) Resolve(department string) (officehours.Rule, bool) {
	return s.registry.Resolve(department)
}
