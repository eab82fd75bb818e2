package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

type fakeGate struct {
	err    error
	checks int
}

func (g *fakeGate) Check(ctx context.Context, plan PlanDocument) error {
	g.checks++
	return g.err
}

func savePlan(t *testing.T, root string, plan PlanDocument) {
	t.Helper()
	if err := yamlutil.Dump(paths.PlanLatestFile(root), plan); err != nil {
		t.Fatalf("write plan: %v", err)
	}
}

func loadExecutionLog(t *testing.T, root string) []interface{} {
	t.Helper()
	index, err := yamlutil.Load(paths.LogsIndexFile(root))
	if err != nil {
		t.Fatalf("load log index: %v", err)
	}
	records, _ := index["plan_execution"].([]interface{})
	return records
}

func recordProvider(t *testing.T, record interface{}) string {
	t.Helper()
	m, ok := record.(map[string]interface{})
	if !ok {
		t.Fatalf("execution record = %T, want mapping", record)
	}
	name, _ := m["provider"].(string)
	return name
}

func TestApplyEmptyPlanIsNoop(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	e := newTestEngine(t, tc)

	report, err := e.Apply(context.Background(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !report.Empty {
		t.Errorf("report.Empty = false, want true for missing plan")
	}
	if len(fakeAlpha.applied) != 0 {
		t.Errorf("provider dispatched on empty plan: %v", fakeAlpha.applied)
	}
	if records := loadExecutionLog(t, tc.RepoRoot); len(records) != 0 {
		t.Errorf("execution log = %v, want empty", records)
	}
}

func TestApplyDispatchesAndRecords(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	savePlan(t, tc.RepoRoot, PlanDocument{
		"test.alpha": {{"op": "add", "name": "one"}, {"op": "remove", "name": "two"}},
	})
	e := newTestEngine(t, tc)

	report, err := e.Apply(context.Background(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if report.Empty {
		t.Fatalf("report.Empty = true, want dispatch")
	}
	if len(fakeAlpha.applied) != 1 || len(fakeAlpha.applied[0]) != 2 {
		t.Errorf("provider saw %v, want one batch of two actions", fakeAlpha.applied)
	}
	if got := report.TotalApplied(); got != 2 {
		t.Errorf("TotalApplied() = %d, want 2", got)
	}

	records := loadExecutionLog(t, tc.RepoRoot)
	if len(records) != 1 {
		t.Fatalf("execution log has %d records, want 1", len(records))
	}
	if got := recordProvider(t, records[0]); got != "test.alpha" {
		t.Errorf("record provider = %q, want test.alpha", got)
	}
}

func TestApplyStaleProviderSkippedSilently(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	savePlan(t, tc.RepoRoot, PlanDocument{
		"test.alpha": {{"op": "add", "name": "one"}},
		"test.ghost": {{"op": "add", "name": "stale"}},
	})
	e := newTestEngine(t, tc)

	report, err := e.Apply(context.Background(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v, stale entries must not fail the run", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "test.ghost" {
		t.Errorf("report.Skipped = %v, want [test.ghost]", report.Skipped)
	}
	if _, ok := report.Failures["test.ghost"]; ok {
		t.Errorf("stale entry reported as failure: %v", report.Failures)
	}

	records := loadExecutionLog(t, tc.RepoRoot)
	if len(records) != 1 || recordProvider(t, records[0]) != "test.alpha" {
		t.Errorf("execution log = %v, want single test.alpha record", records)
	}
}

func TestApplyEmptyActionListStillRecorded(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	savePlan(t, tc.RepoRoot, PlanDocument{"test.alpha": {}})
	e := newTestEngine(t, tc)

	report, err := e.Apply(context.Background(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if report.Empty {
		t.Errorf("report.Empty = true, want dispatch of empty entry")
	}
	if len(fakeAlpha.applied) != 1 || len(fakeAlpha.applied[0]) != 0 {
		t.Errorf("provider saw %v, want one empty batch", fakeAlpha.applied)
	}
	if records := loadExecutionLog(t, tc.RepoRoot); len(records) != 1 {
		t.Errorf("execution log has %d records, want 1", len(records))
	}
}

func TestApplyProviderFailureSkipsRecord(t *testing.T) {
	fakeAlpha.reset("alpha")
	fakeAlpha.applyErr = errors.New("transport down")
	fakeBeta.reset("beta")
	tc := newTestContext(t, "test.alpha", "test.beta")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	writeTestManifest(t, tc.RepoRoot, "beta", "test.beta", "config", "test.beta", "beta")
	savePlan(t, tc.RepoRoot, PlanDocument{
		"test.alpha": {{"op": "add", "name": "one"}},
		"test.beta":  {{"op": "add", "name": "two"}},
	})
	e := newTestEngine(t, tc)

	report, err := e.Apply(context.Background(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v, provider failure must not abort the run", err)
	}
	if _, ok := report.Failures["test.alpha"]; !ok {
		t.Errorf("report.Failures = %v, want test.alpha entry", report.Failures)
	}
	if len(report.Executed) != 1 || report.Executed[0].Provider != "test.beta" {
		t.Errorf("report.Executed = %v, want only test.beta", report.Executed)
	}

	records := loadExecutionLog(t, tc.RepoRoot)
	if len(records) != 1 || recordProvider(t, records[0]) != "test.beta" {
		t.Errorf("execution log = %v, want only test.beta record", records)
	}
}

func TestApplyFailedActionsReportedNotFatal(t *testing.T) {
	fakeAlpha.reset("alpha")
	fakeAlpha.applyFn = func(actions []Action) ([]ActionResult, error) {
		return []ActionResult{
			{Action: actions[0], Success: true},
			{Action: actions[1], Success: false, Message: "exit status 1"},
		}, nil
	}
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	savePlan(t, tc.RepoRoot, PlanDocument{
		"test.alpha": {{"op": "add", "name": "one"}, {"op": "add", "name": "two"}},
	})
	e := newTestEngine(t, tc)

	report, err := e.Apply(context.Background(), ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := report.TotalApplied(); got != 1 {
		t.Errorf("TotalApplied() = %d, want 1", got)
	}
	if len(report.Executed) != 1 || report.Executed[0].Failed() != 1 {
		t.Errorf("Executed = %v, want one execution with one failed action", report.Executed)
	}
	// failed actions still leave the provider recorded
	if records := loadExecutionLog(t, tc.RepoRoot); len(records) != 1 {
		t.Errorf("execution log has %d records, want 1", len(records))
	}
}

func TestApplyRetentionCapsExecutionLog(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	tc.Config.Retention.PlanExecution = 3
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	savePlan(t, tc.RepoRoot, PlanDocument{"test.alpha": {{"op": "add", "name": "one"}}})

	seeded := []interface{}{
		map[string]interface{}{"provider": "old.one", "actions": []interface{}{}},
		map[string]interface{}{"provider": "old.two", "actions": []interface{}{}},
		map[string]interface{}{"provider": "old.three", "actions": []interface{}{}},
	}
	if err := yamlutil.Dump(paths.LogsIndexFile(tc.RepoRoot), map[string]interface{}{"plan_execution": seeded}); err != nil {
		t.Fatalf("seed index: %v", err)
	}
	e := newTestEngine(t, tc)

	if _, err := e.Apply(context.Background(), ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	records := loadExecutionLog(t, tc.RepoRoot)
	if len(records) != 3 {
		t.Fatalf("execution log has %d records, want retention cap of 3", len(records))
	}
	if got := recordProvider(t, records[0]); got != "old.two" {
		t.Errorf("oldest surviving record = %q, want old.two", got)
	}
	if got := recordProvider(t, records[2]); got != "test.alpha" {
		t.Errorf("newest record = %q, want test.alpha", got)
	}
}

func TestApplyGateBlocksUnlessForced(t *testing.T) {
	fakeAlpha.reset("alpha")
	tc := newTestContext(t, "test.alpha")
	writeTestManifest(t, tc.RepoRoot, "alpha", "test.alpha", "config", "test.alpha", "alpha")
	savePlan(t, tc.RepoRoot, PlanDocument{"test.alpha": {{"op": "remove", "name": "openssh-server"}}})

	gate := &fakeGate{err: NewValidationError("plan denied", nil).WithCode(ErrCodePolicyDenied)}
	e := newTestEngine(t, tc, WithGate(gate))

	if _, err := e.Apply(context.Background(), ApplyOptions{}); err == nil {
		t.Fatalf("Apply() error = nil, want gate denial")
	}
	if len(fakeAlpha.applied) != 0 {
		t.Errorf("provider dispatched despite gate denial: %v", fakeAlpha.applied)
	}

	report, err := e.Apply(context.Background(), ApplyOptions{Force: true})
	if err != nil {
		t.Fatalf("Apply(force) error = %v, want gate bypassed", err)
	}
	if len(report.Executed) != 1 {
		t.Errorf("forced apply executed %v, want one provider", report.Executed)
	}
	if gate.checks != 2 {
		t.Errorf("gate.checks = %d, want 2", gate.checks)
	}
}
