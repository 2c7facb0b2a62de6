package shared

// HR Connect resource identifiers used in permission checks.
const (
	ResourceAttendance = "attendance"
	ResourceEmployees  = "employees"
	ResourceReports    = "reports"
	ResourceLeave      = "leave"
	ResourceRules      = "rules"
	ResourceJobs       = "jobs"
	ResourceAudit      = "audit"
)

// Permissions guarding the administrative API, written "resource.action".
const (
	PermRulesRead      = ResourceRules + ".read"
	PermRulesWrite     = ResourceRules + ".write"
	PermJobsRead       = ResourceJobs + ".read"
	PermEmployeesRead  = ResourceEmployees + ".read"
	PermEmployeesWrite = ResourceEmployees + ".write"
	PermAuditRead      = ResourceAudit + ".read"
)

// CoreResources lists the resources the service itself checks.
func CoreResources() []string {
	return []string{
		ResourceAttendance,
		ResourceEmployees,
		ResourceReports,
		ResourceLeave,
		ResourceRules,
		ResourceJobs,
		ResourceAudit,
	}
}
