package engine

import (
	"sort"
	"time"
)

// Document is one YAML state document wrapped under its fragment key,
// e.g. {"services": [...]} for live/services.yaml. Values are free-form:
// providers own the shape below the fragment key.
type Document map[string]interface{}

// Fragment extracts the payload stored under the given fragment key.
// A missing key yields nil, which providers treat as empty.
func (d Document) Fragment(name string) interface{} {
	if d == nil {
		return nil
	}
	return d[name]
}

// Wrap builds a Document holding payload under the fragment key.
func Wrap(fragment string, payload interface{}) Document {
	return Document{fragment: payload}
}

// Action is a single corrective step emitted by a provider plan.
// Every action carries an "op" key plus provider-specific fields.
type Action map[string]interface{}

// Op returns the action operation name, or "" when absent.
func (a Action) Op() string {
	s, _ := a["op"].(string)
	return s
}

// Name returns the action subject name, or "" when absent.
func (a Action) Name() string {
	s, _ := a["name"].(string)
	return s
}

// String renders the action for logs and reports.
func (a Action) String() string {
	op := a.Op()
	if op == "" {
		op = "unknown"
	}
	if name := a.Name(); name != "" {
		return op + " " + name
	}
	if path, ok := a["path"].(string); ok && path != "" {
		return op + " " + path
	}
	return op
}

// PlanDocument is the persisted plan shape: provider name to its pending
// actions. Serialized as plan/latest.yaml.
type PlanDocument map[string][]Action

// Empty reports whether the plan contains no actions at all.
func (p PlanDocument) Empty() bool {
	for _, actions := range p {
		if len(actions) > 0 {
			return false
		}
	}
	return true
}

// Providers returns the provider names present in the plan, sorted.
func (p PlanDocument) Providers() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total returns the number of actions across all providers.
func (p PlanDocument) Total() int {
	n := 0
	for _, actions := range p {
		n += len(actions)
	}
	return n
}

// ActionResult is the outcome of applying one action.
type ActionResult struct {
	Action  Action `yaml:"action" json:"action"`
	Success bool   `yaml:"success" json:"success"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// ExecutionRecord is appended to the plan_execution list in the current
// log index every time a provider's actions are applied.
type ExecutionRecord struct {
	Provider string   `yaml:"provider" json:"provider"`
	Actions  []Action `yaml:"actions" json:"actions"`
}

// RunRecord summarizes one engine run for the history archive.
type RunRecord struct {
	ID         string
	Operation  string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Detail     string
}

// Run status values recorded in the history archive.
const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
	RunStatusNoop   = "noop"
)

// SnapshotReport describes what a snapshot run produced.
type SnapshotReport struct {
	// RunID correlates log lines, spans, and history rows for this run.
	RunID string

	// RotatedTo is the timestamped directory the previous logs/current
	// was moved to, or "" when there was nothing to rotate.
	RotatedTo string

	// Fragments lists the live fragment files written, in provider order.
	Fragments []string

	// LogSources lists the logs providers that contributed to the index.
	LogSources []string

	// Failures maps provider name to the failure message for providers
	// that errored and were skipped this run.
	Failures map[string]string
}

// ProviderExecution groups the per-action results of one provider apply.
type ProviderExecution struct {
	Provider string
	Results  []ActionResult
}

// Failed returns the number of actions that did not succeed.
func (pe ProviderExecution) Failed() int {
	n := 0
	for _, r := range pe.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// ApplyReport describes what an apply run executed.
type ApplyReport struct {
	RunID string

	// Empty is true when no plan was found or the plan had no actions.
	Empty bool

	// Executed holds per-provider results in plan order.
	Executed []ProviderExecution

	// Skipped lists plan entries whose provider is unknown or disabled.
	Skipped []string

	// Failures maps provider name to the failure message for providers
	// whose apply aborted before producing results.
	Failures map[string]string
}

// TotalApplied returns the number of successfully applied actions.
func (r *ApplyReport) TotalApplied() int {
	n := 0
	for _, pe := range r.Executed {
		n += len(pe.Results) - pe.Failed()
	}
	return n
}

// StatusReport maps fragment name to drift (true means state and live
// disagree).
type StatusReport map[string]bool

// InSync reports whether no fragment drifts.
func (s StatusReport) InSync() bool {
	for _, drift := range s {
		if drift {
			return false
		}
	}
	return true
}

// Drifted returns the drifting fragment names, sorted.
func (s StatusReport) Drifted() []string {
	var names []string
	for name, drift := range s {
		if drift {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Fragments returns all fragment names in the report, sorted.
func (s StatusReport) Fragments() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
