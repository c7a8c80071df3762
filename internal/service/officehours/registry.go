package officehours

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/officehours"
)

// snapshot is an immutable view of the rule set. Writers build a new one and swap it in.
type snapshot struct {
	global *officehours.Rule
	byDept map[string]officehours.Rule
}

// Registry holds the active office-hours rules. Reads never lock and always observe a
// complete rule set.
type Registry struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&snapshot{byDept: map[string]officehours.Rule{}})
	return r
}

// Load replaces every rule. Two global rules, or two rules for the same normalized
// department, are rejected and the previous set stays active.
func (r *Registry) Load(rules []officehours.Rule) error {
	next := &snapshot{byDept: make(map[string]officehours.Rule, len(rules))}
	for _, rule := range rules {
		rule = rule.Clone()
		if rule.IsGlobal() {
			if next.global != nil {
				return fmt.Errorf("%w: %s and %s", officehours.ErrDuplicateGlobalRule, next.global.ID, rule.ID)
			}
			rule.Department = nil
			next.global = &rule
			continue
		}
		key := rule.Key()
		if existing, ok := next.byDept[key]; ok {
			return fmt.Errorf("%w: %q (%s and %s)", officehours.ErrDuplicateDepartmentRule, key, existing.ID, rule.ID)
		}
		next.byDept[key] = rule
	}

	r.writeMu.Lock()
	r.current.Store(next)
	r.writeMu.Unlock()
	return nil
}

// Resolve returns the department's own rule, else the global rule, else false.
func (r *Registry) Resolve(department string) (officehours.Rule, bool) {
	snap := r.current.Load()
	if key := officehours.NormalizeDepartment(department); key != "" {
		if rule, ok := snap.byDept[key]; ok {
			return rule.Clone(), true
		}
	}
	if snap.global != nil {
		return snap.global.Clone(), true
	}
	return officehours.Rule{}, false
}

// Global returns the global rule when one is configured.
func (r *Registry) Global() (officehours.Rule, bool) {
	snap := r.current.Load()
	if snap.global == nil {
		return officehours.Rule{}, false
	}
	return snap.global.Clone(), true
}

// Upsert replaces the global rule, or the rule for the same normalized department.
// The replaced rule's ID is kept when the incoming rule has none.
func (r *Registry) Upsert(rule officehours.Rule) officehours.Rule {
	rule = rule.Clone()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	prev := r.current.Load()
	next := &snapshot{global: prev.global, byDept: make(map[string]officehours.Rule, len(prev.byDept)+1)}
	for k, v := range prev.byDept {
		next.byDept[k] = v
	}

	if rule.IsGlobal() {
		rule.Department = nil
		if rule.ID == "" && prev.global != nil {
			rule.ID = prev.global.ID
		}
		next.global = &rule
	} else {
		key := rule.Key()
		if existing, ok := prev.byDept[key]; ok && rule.ID == "" {
			rule.ID = existing.ID
		}
		next.byDept[key] = rule
	}

	r.current.Store(next)
	return rule.Clone()
}

// Remove deletes the rule with id.
func (r *Registry) Remove(id string) (officehours.Rule, bool) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	prev := r.current.Load()
	if prev.global != nil && prev.global.ID == id {
		r.current.Store(&snapshot{byDept: prev.byDept})
		return prev.global.Clone(), true
	}

	for key, rule := range prev.byDept {
		if rule.ID != id {
			continue
		}
		next := &snapshot{global: prev.global, byDept: make(map[string]officehours.Rule, len(prev.byDept))}
		for k, v := range prev.byDept {
			if k != key {
				next.byDept[k] = v
			}
		}
		r.current.Store(next)
		return rule.Clone(), true
	}
	return officehours.Rule{}, false
}

// Rules returns the global rule, if any, followed by department rules sorted by key.
func (r *Registry) Rules() []officehours.Rule {
	snap := r.current.Load()
	out := make([]officehours.Rule, 0, len(snap.byDept)+1)
	if snap.global != nil {
		out = append(out, snap.global.Clone())
	}

	keys := make([]string, 0, len(snap.byDept))
	for k := range snap.byDept {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, snap.byDept[k].Clone())
	}
	return out
}
