package rbac

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrUnknownRole indicates a role name outside the enumeration.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrUnknownAction indicates an action name outside the enumeration.
	ErrUnknownAction = errors.New("rbac: unknown action")
	// ErrInvalidRule indicates a malformed rule definition.
	ErrInvalidRule = errors.New("rbac: invalid rule")
)

// Role identifies the category of an authenticated principal.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHRAdmin  Role = "hr_admin"
	RoleAdmin    Role = "admin"
)

// DefaultRole is held until authentication completes and after logout.
const DefaultRole = RoleEmployee

// Roles lists every enumerated role in ascending privilege order.
func Roles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleHRAdmin, RoleAdmin}
}

// ParseRole resolves a role name, ignoring case and surrounding space.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrUnknownRole
	}
	return role, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHRAdmin, RoleAdmin:
		return true
	}
	return false
}

// Label renders the role for display, e.g. "Hr Admin".
func (r Role) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(r), "_", " "))
}

// HasPermission asks the rule set whether r may perform action on resource.
func (r Role) HasPermission(policy Policy, resource string, action Action) bool {
	if policy == nil {
		return false
	}
	return policy.Allows(r, resource, action)
}

// Action is an operation evaluated against a resource.
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
)

// Actions lists every enumerated action.
func Actions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete, ActionApprove}
}

// ParseAction resolves an action name, ignoring case and surrounding space.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !action.Valid() {
		return "", ErrUnknownAction
	}
	return action, nil
}

// Valid reports whether a is one of the enumerated actions.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionDelete, ActionApprove:
		return true
	}
	return false
}

// Query is a single permission question.
type Query struct {
	Resource string
	Action   Action
}

// NewQuery builds a Query with a normalised resource name.
func NewQuery(resource string, action Action) Query {
	return Query{Resource: NormalizeResource(resource), Action: action}
}

// Rule grants a set of actions on one resource to a role.
type Rule struct {
	Role     Role     `json:"role" yaml:"role" validate:"required"`
	Resource string   `json:"resource" yaml:"resource" validate:"required"`
	Actions  []Action `json:"actions" yaml:"actions" validate:"required,min=1,dive,required"`
}

// WildcardResource matches every resource in a rule.
const WildcardResource = "*"

// NormalizeResource trims and lower-cases a resource identifier.
func NormalizeResource(resource string) string {
	return strings.ToLower(strings.TrimSpace(resource))
}
