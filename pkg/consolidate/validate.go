package consolidate

import (
	"fmt"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a consistency finding on a finished state. Issues are reported,
// never fatal.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// minRoleCoverage is the share of tasks that should have a role before the
// result is considered usable.
const minRoleCoverage = 0.3

// Validate checks a finalized state for problems worth surfacing.
func Validate(st *State) []Issue {
	var issues []Issue

	if len(st.Tasks) > 0 && len(st.Roles) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  fmt.Sprintf("%d tasks extracted but no roles", len(st.Tasks)),
		})
	}

	if len(st.Tasks) > 0 && len(st.Roles) > 0 {
		assigned := 0
		for _, t := range st.Tasks {
			if st.RoleOf(t.ID) != "" {
				assigned++
			}
		}
		if float64(assigned) < minRoleCoverage*float64(len(st.Tasks)) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("only %d of %d tasks have a role", assigned, len(st.Tasks)),
			})
		}
	}

	for _, t := range st.Tasks {
		if t.ProcessID == "" || st.Process(t.ProcessID) == nil {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("task %q has no process", t.Name),
			})
		}
	}

	for _, f := range st.Flows {
		if st.Task(f.FromTaskID) == nil || st.Task(f.ToTaskID) == nil {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("flow %s -> %s references an unknown task", f.FromTaskID, f.ToTaskID),
			})
		}
	}

	for _, r := range st.Rules {
		if st.Decision(r.DecisionID) == nil {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("rule %s references an unknown decision", r.ID),
			})
		}
	}

	return issues
}
