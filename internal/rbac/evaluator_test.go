package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubPolicy grants exactly the listed triples.
type stubPolicy map[Role]map[string][]Action

func (s stubPolicy) Allows(role Role, resource string, action Action) bool {
	for _, granted := range s[role][resource] {
		if granted == action {
			return true
		}
	}
	return false
}

func reportsPolicy() stubPolicy {
	return stubPolicy{
		RoleManager: {"reports": {ActionRead}},
	}
}

func TestEvaluatorDefaultRoleUsesBaselineGrants(t *testing.T) {
	eval := NewEvaluator(NewHolder(), reportsPolicy())
	require.Equal(t, DefaultRole, eval.Role())
	require.False(t, eval.HasPermission("reports", ActionRead))
}

func TestEvaluatorReflectsRoleReplacement(t *testing.T) {
	holder := NewHolder()
	eval := NewEvaluator(holder, reportsPolicy())

	before := eval.HasPermission("reports", ActionRead)
	holder.Replace(RoleManager)
	after := eval.HasPermission("reports", ActionRead)

	require.False(t, before)
	require.True(t, after)

	holder.Replace(DefaultRole)
	require.False(t, eval.HasPermission("reports", ActionRead))
}

func TestEvaluatorIsDeterministic(t *testing.T) {
	table, err := LoadRulesFile("testdata/rules.yaml")
	require.NoError(t, err)
	eval := NewEvaluator(NewHolderWith(RoleManager), table)

	first := eval.HasPermission("reports", ActionApprove)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, eval.HasPermission("reports", ActionApprove))
	}
}

func TestEvaluatorAnswersEveryInput(t *testing.T) {
	table, err := LoadRulesFile("testdata/rules.yaml")
	require.NoError(t, err)

	resources := []string{"attendance", "reports", "payroll", "", "  ", "REPORTS", "a.b.c"}
	actions := append(Actions(), Action(""), Action("launch"))
	for _, role := range append(Roles(), Role("ghost")) {
		eval := NewEvaluator(NewHolderWith(role), table)
		for _, resource := range resources {
			for _, action := range actions {
				require.NotPanics(t, func() { eval.HasPermission(resource, action) })
			}
		}
	}
}

func TestEvaluatorDeniesUnknownInputs(t *testing.T) {
	table, err := LoadRulesFile("testdata/rules.yaml")
	require.NoError(t, err)

	admin := NewEvaluator(NewHolderWith(RoleAdmin), table)
	require.True(t, admin.HasPermission("payroll", ActionDelete))
	require.False(t, admin.HasPermission("", ActionRead))
	require.False(t, admin.HasPermission("payroll", Action("launch")))

	ghost := NewEvaluator(NewHolderWith(Role("ghost")), table)
	require.False(t, ghost.HasPermission("attendance", ActionRead))
}

func TestEvaluatorNilPolicyDenies(t *testing.T) {
	eval := NewEvaluator(NewHolderWith(RoleAdmin), nil)
	for _, action := range Actions() {
		require.False(t, eval.HasPermission("reports", action))
	}
	require.False(t, RoleAdmin.HasPermission(nil, "reports", ActionRead))
}

func TestEvaluatorCheckNormalisesQuery(t *testing.T) {
	eval := NewEvaluator(NewHolderWith(RoleManager), reportsPolicy())
	require.True(t, eval.Check(NewQuery("  Reports ", ActionRead)))
	require.False(t, eval.Check(NewQuery("reports", ActionWrite)))
}

func TestZeroEvaluatorDenies(t *testing.T) {
	var eval Evaluator
	require.NotPanics(t, func() {
		require.False(t, eval.HasPermission("reports", ActionRead))
		require.False(t, eval.Check(NewQuery("reports", ActionRead)))
	})
	require.Equal(t, DefaultRole, eval.Role())
}
