package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRuleTableRejectsInvalidRules(t *testing.T) {
	cases := map[string]Rule{
		"missing role":     {Resource: "reports", Actions: []Action{ActionRead}},
		"unknown role":     {Role: "ghost", Resource: "reports", Actions: []Action{ActionRead}},
		"blank resource":   {Role: RoleManager, Resource: "   ", Actions: []Action{ActionRead}},
		"no actions":       {Role: RoleManager, Resource: "reports"},
		"unknown action":   {Role: RoleManager, Resource: "reports", Actions: []Action{"launch"}},
		"empty action":     {Role: RoleManager, Resource: "reports", Actions: []Action{""}},
		"missing resource": {Role: RoleManager, Actions: []Action{ActionRead}},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRuleTable([]Rule{rule})
			require.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestRuleTableMergesAndNormalises(t *testing.T) {
	table, err := NewRuleTable([]Rule{
		{Role: RoleManager, Resource: "Reports", Actions: []Action{ActionRead}},
		{Role: RoleManager, Resource: "reports ", Actions: []Action{ActionApprove, ActionRead}},
	})
	require.NoError(t, err)

	require.Equal(t, []Rule{
		{Role: RoleManager, Resource: "reports", Actions: []Action{ActionApprove, ActionRead}},
	}, table.Rules())
	require.True(t, table.Allows(RoleManager, "REPORTS", ActionApprove))
	require.False(t, table.Allows(RoleManager, "reports", ActionDelete))
}

func TestRuleTableWildcard(t *testing.T) {
	table, err := NewRuleTable([]Rule{
		{Role: RoleHRAdmin, Resource: WildcardResource, Actions: []Action{ActionRead}},
		{Role: RoleHRAdmin, Resource: "employees", Actions: []Action{ActionWrite}},
	})
	require.NoError(t, err)

	require.True(t, table.Allows(RoleHRAdmin, "anything", ActionRead))
	require.True(t, table.Allows(RoleHRAdmin, "employees", ActionRead))
	require.True(t, table.Allows(RoleHRAdmin, "employees", ActionWrite))
	require.False(t, table.Allows(RoleHRAdmin, "payroll", ActionWrite))
	require.False(t, table.Allows(RoleEmployee, "anything", ActionRead))
}

func TestRulesForFiltersByRole(t *testing.T) {
	table, err := LoadRulesFile("testdata/rules.yaml")
	require.NoError(t, err)

	rules := table.RulesFor(RoleManager)
	require.Len(t, rules, 2)
	for _, rule := range rules {
		require.Equal(t, RoleManager, rule.Role)
	}
	require.Empty(t, table.RulesFor(RoleHRAdmin))
}

func TestEmptyAndNilTablesDenyEverything(t *testing.T) {
	empty, err := NewRuleTable(nil)
	require.NoError(t, err)
	var missing *RuleTable

	for _, role := range Roles() {
		for _, action := range Actions() {
			require.False(t, empty.Allows(role, "reports", action))
			require.False(t, missing.Allows(role, "reports", action))
			require.False(t, DenyAll{}.Allows(role, "reports", action))
		}
	}
	require.Nil(t, missing.Rules())
}

func TestReloadingPolicySwap(t *testing.T) {
	policy := NewReloadingPolicy(nil)
	require.False(t, policy.Allows(RoleManager, "reports", ActionRead))
	require.Nil(t, policy.Table())

	table, err := NewRuleTable([]Rule{{Role: RoleManager, Resource: "reports", Actions: []Action{ActionRead}}})
	require.NoError(t, err)
	policy.Swap(table)
	require.True(t, policy.Allows(RoleManager, "reports", ActionRead))
	require.Same(t, table, policy.Table())
}

func TestParseRoleAndAction(t *testing.T) {
	role, err := ParseRole(" HR_Admin ")
	require.NoError(t, err)
	require.Equal(t, RoleHRAdmin, role)
	require.Equal(t, "Hr Admin", role.Label())

	_, err = ParseRole("root")
	require.ErrorIs(t, err, ErrUnknownRole)

	action, err := ParseAction("APPROVE")
	require.NoError(t, err)
	require.Equal(t, ActionApprove, action)

	_, err = ParseAction("")
	require.ErrorIs(t, err, ErrUnknownAction)
}
