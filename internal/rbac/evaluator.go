package rbac

// Evaluator answers permission queries for the current role.
type Evaluator struct {
	roles  RoleReader
	policy Policy
}

// NewEvaluator binds a role source to a policy. A nil policy denies everything.
func NewEvaluator(roles RoleReader, policy Policy) Evaluator {
	if policy == nil {
		policy = DenyAll{}
	}
	if roles == nil {
		roles = NewHolder()
	}
	return Evaluator{roles: roles, policy: policy}
}

// HasPermission reports whether the current role may perform action on resource.
func (e Evaluator) HasPermission(resource string, action Action) bool {
	if e.roles == nil {
		return false
	}
	return e.roles.Current().HasPermission(e.policy, resource, action)
}

// Check evaluates a prepared Query.
func (e Evaluator) Check(q Query) bool {
	return e.HasPermission(q.Resource, q.Action)
}

// Role returns the role the evaluator currently reads.
func (e Evaluator) Role() Role {
	if e.roles == nil {
		return DefaultRole
	}
	return e.roles.Current()
}
