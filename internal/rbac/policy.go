package rbac

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

// Policy decides whether a role may perform an action on a resource.
type Policy interface {
	Allows(role Role, resource string, action Action) bool
}

type actionSet map[Action]struct{}

// RuleTable is an immutable role -> resource -> actions lookup.
type RuleTable struct {
	grants map[Role]map[string]actionSet
}

var ruleValidator = validator.New()

// NewRuleTable validates rules and indexes them. Rules for the same role and
// resource are merged.
func NewRuleTable(rules []Rule) (*RuleTable, error) {
	table := &RuleTable{grants: make(map[Role]map[string]actionSet)}
	for i, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		resources, ok := table.grants[rule.Role]
		if !ok {
			resources = make(map[string]actionSet)
			table.grants[rule.Role] = resources
		}
		resource := NormalizeResource(rule.Resource)
		set, ok := resources[resource]
		if !ok {
			set = make(actionSet, len(rule.Actions))
			resources[resource] = set
		}
		for _, action := range rule.Actions {
			set[action] = struct{}{}
		}
	}
	return table, nil
}

func validateRule(rule Rule) error {
	if err := ruleValidator.Struct(rule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if !rule.Role.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidRule, ErrUnknownRole, rule.Role)
	}
	if NormalizeResource(rule.Resource) == "" {
		return fmt.Errorf("%w: empty resource", ErrInvalidRule)
	}
	for _, action := range rule.Actions {
		if !action.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidRule, ErrUnknownAction, action)
		}
	}
	return nil
}

// Allows implements Policy. Unknown roles, resources, and actions are denied.
func (t *RuleTable) Allows(role Role, resource string, action Action) bool {
	if t == nil || !action.Valid() {
		return false
	}
	resources, ok := t.grants[role]
	if !ok {
		return false
	}
	resource = NormalizeResource(resource)
	if resource == "" {
		return false
	}
	if set, ok := resources[resource]; ok {
		if _, granted := set[action]; granted {
			return true
		}
	}
	if set, ok := resources[WildcardResource]; ok {
		_, granted := set[action]
		return granted
	}
	return false
}

// HasResource reports whether any role holds a rule naming resource.
func (t *RuleTable) HasResource(resource string) bool {
	if t == nil {
		return false
	}
	resource = NormalizeResource(resource)
	for _, resources := range t.grants {
		if _, ok := resources[resource]; ok {
			return true
		}
	}
	return false
}

// Rules flattens the table back into sorted rules.
func (t *RuleTable) Rules() []Rule {
	if t == nil {
		return nil
	}
	var rules []Rule
	for role, resources := range t.grants {
		for resource, set := range resources {
			actions := make([]Action, 0, len(set))
			for action := range set {
				actions = append(actions, action)
			}
			sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
			rules = append(rules, Rule{Role: role, Resource: resource, Actions: actions})
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Role != rules[j].Role {
			return rules[i].Role < rules[j].Role
		}
		return rules[i].Resource < rules[j].Resource
	})
	return rules
}

// RulesFor returns the rules granted to a single role.
func (t *RuleTable) RulesFor(role Role) []Rule {
	var out []Rule
	for _, rule := range t.Rules() {
		if rule.Role == role {
			out = append(out, rule)
		}
	}
	return out
}

// DenyAll rejects every query. It stands in until a rule table is loaded.
type DenyAll struct{}

// Allows implements Policy.
func (DenyAll) Allows(Role, string, Action) bool { return false }

// ReloadingPolicy swaps the underlying policy atomically.
type ReloadingPolicy struct {
	current atomic.Pointer[RuleTable]
}

// NewReloadingPolicy starts with the given table. A nil table denies all.
func NewReloadingPolicy(initial *RuleTable) *ReloadingPolicy {
	p := &ReloadingPolicy{}
	if initial != nil {
		p.current.Store(initial)
	}
	return p
}

// Swap installs a new rule table.
func (p *ReloadingPolicy) Swap(table *RuleTable) {
	p.current.Store(table)
}

// Table returns the rule table currently in effect.
func (p *ReloadingPolicy) Table() *RuleTable {
	return p.current.Load()
}

// HasResource reports whether the current table names resource.
func (p *ReloadingPolicy) HasResource(resource string) bool {
	return p.current.Load().HasResource(resource)
}

// Allows implements Policy.
func (p *ReloadingPolicy) Allows(role Role, resource string, action Action) bool {
	return p.current.Load().Allows(role, resource, action)
}
