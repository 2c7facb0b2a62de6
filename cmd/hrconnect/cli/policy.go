package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/hrconnect/hrconnect/internal/rbac"
	"github.com/hrconnect/hrconnect/internal/shared"
)

// RuleImporter stores a rule table.
type RuleImporter interface {
	ImportTable(ctx context.Context, table *rbac.RuleTable) error
}

// PolicyCLI evaluates and imports rule files from the command line.
type PolicyCLI struct {
	importer RuleImporter
	stdout   io.Writer
	stderr   io.Writer
}

// NewPolicyCLI builds the CLI. importer may be nil when only check is used.
func NewPolicyCLI(importer RuleImporter, stdout, stderr io.Writer) *PolicyCLI {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &PolicyCLI{importer: importer, stdout: stdout, stderr: stderr}
}

// CheckResult is the JSON shape printed by `policy check -json`.
type CheckResult struct {
	Role     rbac.Role   `json:"role"`
	Resource string      `json:"resource"`
	Action   rbac.Action `json:"action"`
	Allowed  bool        `json:"allowed"`
}

// Run dispatches `policy <check|matrix|import>` and returns the process exit
// code. check exits 0 on allow and 2 on deny.
func (c *PolicyCLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(c.stderr, "usage: hrconnect policy <check|matrix|import> [flags]")
		return 1
	}
	switch args[0] {
	case "check":
		return c.check(args[1:])
	case "matrix":
		return c.matrix(args[1:])
	case "import":
		return c.importRules(ctx, args[1:])
	default:
		_, _ = fmt.Fprintf(c.stderr, "policy: unknown command %q\n", args[0])
		return 1
	}
}

func (c *PolicyCLI) check(args []string) int {
	fs := flag.NewFlagSet("policy check", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rulesPath := fs.String("rules", "", "YAML rule file")
	roleName := fs.String("role", string(rbac.DefaultRole), "role to evaluate")
	resource := fs.String("resource", "", "resource name")
	actionName := fs.String("action", "", "action name")
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *rulesPath == "" {
		_, _ = fmt.Fprintln(c.stderr, "policy check: -rules is required")
		return 1
	}
	role, err := rbac.ParseRole(*roleName)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy check: %v %q\n", err, *roleName)
		return 1
	}
	action, err := rbac.ParseAction(*actionName)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy check: %v %q\n", err, *actionName)
		return 1
	}
	table, err := rbac.LoadRulesFile(*rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy check: %v\n", err)
		return 1
	}

	q := rbac.NewQuery(*resource, action)
	allowed := rbac.NewEvaluator(rbac.NewHolderWith(role), table).Check(q)
	if *jsonOut {
		if err := json.NewEncoder(c.stdout).Encode(CheckResult{Role: role, Resource: q.Resource, Action: action, Allowed: allowed}); err != nil {
			_, _ = fmt.Fprintf(c.stderr, "policy check: encode json: %v\n", err)
			return 1
		}
	} else if allowed {
		_, _ = fmt.Fprintln(c.stdout, "allow")
	} else {
		_, _ = fmt.Fprintln(c.stdout, "deny")
	}
	if !allowed {
		return 2
	}
	return 0
}

// matrix prints the granted actions of every role on each resource.
func (c *PolicyCLI) matrix(args []string) int {
	fs := flag.NewFlagSet("policy matrix", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rulesPath := fs.String("rules", "", "YAML rule file")
	resources := fs.String("resources", strings.Join(shared.CoreResources(), ","), "comma separated resources")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *rulesPath == "" {
		_, _ = fmt.Fprintln(c.stderr, "policy matrix: -rules is required")
		return 1
	}
	table, err := rbac.LoadRulesFile(*rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy matrix: %v\n", err)
		return 1
	}

	roles := rbac.Roles()
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	header := []string{"RESOURCE"}
	for _, role := range roles {
		header = append(header, strings.ToUpper(string(role)))
	}
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, resource := range strings.Split(*resources, ",") {
		resource = rbac.NormalizeResource(resource)
		if resource == "" {
			continue
		}
		row := []string{resource}
		for _, role := range roles {
			var granted []string
			for _, action := range rbac.Actions() {
				if role.HasPermission(table, resource, action) {
					granted = append(granted, string(action))
				}
			}
			if len(granted) == 0 {
				granted = []string{"-"}
			}
			row = append(row, strings.Join(granted, ","))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy matrix: %v\n", err)
		return 1
	}
	return 0
}

func (c *PolicyCLI) importRules(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("policy import", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rulesPath := fs.String("rules", "", "YAML rule file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *rulesPath == "" {
		_, _ = fmt.Fprintln(c.stderr, "policy import: -rules is required")
		return 1
	}
	if c.importer == nil {
		_, _ = fmt.Fprintln(c.stderr, "policy import: no database configured")
		return 1
	}
	table, err := rbac.LoadRulesFile(*rulesPath)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy import: %v\n", err)
		return 1
	}
	if err := c.importer.ImportTable(ctx, table); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "policy import: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(c.stdout, "imported %d rules\n", len(table.Rules()))
	return 0
}
