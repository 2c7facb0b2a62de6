package rbac

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRules(t *testing.T) {
	rules, err := DecodeRules(strings.NewReader(`
rules:
  - role: manager
    resource: reports
    actions: [read, approve]
`))
	require.NoError(t, err)
	require.Equal(t, []Rule{{Role: RoleManager, Resource: "reports", Actions: []Action{ActionRead, ActionApprove}}}, rules)
}

func TestDecodeRulesEmptyDocument(t *testing.T) {
	rules, err := DecodeRules(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestLoadRulesFile(t *testing.T) {
	table, err := LoadRulesFile("testdata/rules.yaml")
	require.NoError(t, err)

	require.True(t, table.Allows(RoleEmployee, "attendance", ActionWrite))
	require.False(t, table.Allows(RoleEmployee, "reports", ActionRead))
	require.True(t, table.Allows(RoleManager, "reports", ActionApprove))
	require.True(t, table.Allows(RoleAdmin, "payroll", ActionDelete))
}

func TestLoadRulesFileRejectsUnknownFields(t *testing.T) {
	_, err := LoadRulesFile("testdata/unknown_field.yaml")
	require.Error(t, err)
	require.Contains(t, err.Error(), "scope")
}

func TestLoadRulesFileMissing(t *testing.T) {
	_, err := LoadRulesFile("testdata/absent.yaml")
	require.Error(t, err)
}

func TestLoadRulesFileRejectsInvalidRole(t *testing.T) {
	_, err := NewRuleTable(mustDecode(t, `
rules:
  - role: superuser
    resource: reports
    actions: [read]
`))
	require.ErrorIs(t, err, ErrUnknownRole)
}

func mustDecode(t *testing.T, doc string) []Rule {
	t.Helper()
	rules, err := DecodeRules(strings.NewReader(doc))
	require.NoError(t, err)
	return rules
}
