package policy

import (
	"github.com/twinsync/twinsync/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block apply.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that block apply when enforcement
	// is enabled.
	SeverityError Severity = "error"
)

// Policy represents a single Rego policy.
type Policy struct {
	// Name is the unique name of the policy. A repository policy whose
	// name matches a built-in replaces it.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego source of the policy.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not set
	// their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the engine.
	Builtin bool `json:"builtin"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// ActionInput is the input document handed to Rego for each pending
// action in a plan.
type ActionInput struct {
	// Provider is the plan key the action was filed under.
	Provider string `json:"provider"`

	// Action is the pending action, op and provider-specific fields.
	Action engine.Action `json:"action"`
}

// Violation represents a single policy violation against one action.
type Violation struct {
	// Policy is the name of the policy that flagged the action.
	Policy string `json:"policy"`

	// Provider is the plan provider the action belongs to.
	Provider string `json:"provider"`

	// Action renders the flagged action for reports.
	Action string `json:"action"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the outcome of evaluating a plan against all
// loaded policies.
type Result struct {
	// Violations lists every finding across all policies and actions.
	Violations []Violation `json:"violations,omitempty"`

	// Failures lists policies that could not be evaluated. Evaluation
	// failures degrade to warnings rather than blocking the plan.
	Failures []string `json:"failures,omitempty"`
}

// Denied reports whether the result contains an error-severity violation.
func (r *Result) Denied() bool {
	for i := range r.Violations {
		if r.Violations[i].Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity violations.
func (r *Result) Errors() []Violation {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity violations.
func (r *Result) Warnings() []Violation {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(sev Severity) []Violation {
	var out []Violation
	for i := range r.Violations {
		if r.Violations[i].Severity == sev {
			out = append(out, r.Violations[i])
		}
	}
	return out
}
