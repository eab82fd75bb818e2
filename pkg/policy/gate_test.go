package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/telemetry"
)

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return log
}

func newTestGate(t *testing.T, opts ...Option) *Gate {
	t.Helper()
	gate, err := NewGate(testLogger(t), opts...)
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return gate
}

func TestNewGateLoadsBuiltins(t *testing.T) {
	gate := newTestGate(t)

	policies := gate.ListPolicies()
	if len(policies) != len(Builtins()) {
		t.Fatalf("expected %d built-in policies, got %d", len(Builtins()), len(policies))
	}

	for _, expected := range []string{"package-removal", "ssh-guard"} {
		p, err := gate.GetPolicy(expected)
		if err != nil {
			t.Fatalf("built-in policy %s not loaded: %v", expected, err)
		}
		if !p.Builtin {
			t.Errorf("policy %s should be marked builtin", expected)
		}
		if p.Rego == "" {
			t.Errorf("policy %s has empty Rego source", expected)
		}
	}
}

func TestEvaluatePackageRemovalWarns(t *testing.T) {
	gate := newTestGate(t)

	plan := engine.PlanDocument{
		"packages.debian": []engine.Action{
			{"op": "install", "name": "curl"},
			{"op": "remove", "name": "nano"},
		},
	}

	result, err := gate.Evaluate(context.Background(), plan)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %+v", len(result.Violations), result.Violations)
	}
	v := result.Violations[0]
	if v.Policy != "package-removal" {
		t.Errorf("expected package-removal violation, got %s", v.Policy)
	}
	if v.Severity != SeverityWarning {
		t.Errorf("expected warning severity, got %s", v.Severity)
	}
	if !strings.Contains(v.Message, "nano") {
		t.Errorf("expected message to name the package, got %q", v.Message)
	}
	if result.Denied() {
		t.Error("warnings must not deny the plan")
	}
}

func TestEvaluateSSHGuard(t *testing.T) {
	gate := newTestGate(t)

	tests := []struct {
		name       string
		action     engine.Action
		wantDenied bool
	}{
		{
			name:       "stop ssh",
			action:     engine.Action{"op": "stop", "name": "ssh"},
			wantDenied: true,
		},
		{
			name:       "disable sshd unit",
			action:     engine.Action{"op": "disable", "name": "sshd.service"},
			wantDenied: true,
		},
		{
			name:       "stop unrelated service",
			action:     engine.Action{"op": "stop", "name": "nginx.service"},
			wantDenied: false,
		},
		{
			name:       "restart ssh is allowed",
			action:     engine.Action{"op": "restart", "name": "ssh"},
			wantDenied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := engine.PlanDocument{"services.systemd": []engine.Action{tt.action}}

			result, err := gate.Evaluate(context.Background(), plan)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Denied() != tt.wantDenied {
				t.Errorf("Denied() = %v, want %v. Violations: %+v",
					result.Denied(), tt.wantDenied, result.Violations)
			}
		})
	}
}

func TestCheckEnforcement(t *testing.T) {
	plan := engine.PlanDocument{
		"services.systemd": []engine.Action{{"op": "stop", "name": "sshd"}},
	}

	t.Run("enforced", func(t *testing.T) {
		gate := newTestGate(t, WithEnforce(true))

		err := gate.Check(context.Background(), plan)
		if err == nil {
			t.Fatal("expected Check to reject the plan")
		}

		var engErr *engine.EngineError
		if !errors.As(err, &engErr) {
			t.Fatalf("expected EngineError, got %T", err)
		}
		if engErr.Code != engine.ErrCodePolicyDenied {
			t.Errorf("expected code %s, got %s", engine.ErrCodePolicyDenied, engErr.Code)
		}
		if !engine.IsValidation(err) {
			t.Error("policy denial should classify as validation")
		}
	})

	t.Run("not enforced", func(t *testing.T) {
		gate := newTestGate(t)

		if err := gate.Check(context.Background(), plan); err != nil {
			t.Fatalf("Check() without enforcement should pass, got %v", err)
		}
	})
}

func TestCheckCleanPlan(t *testing.T) {
	gate := newTestGate(t, WithEnforce(true))

	plan := engine.PlanDocument{
		"packages.debian":  []engine.Action{{"op": "install", "name": "htop"}},
		"services.systemd": []engine.Action{{"op": "start", "name": "nginx.service"}},
	}
	if err := gate.Check(context.Background(), plan); err != nil {
		t.Fatalf("Check() on clean plan failed: %v", err)
	}

	if err := gate.Check(context.Background(), engine.PlanDocument{}); err != nil {
		t.Fatalf("Check() on empty plan failed: %v", err)
	}
}

func writeRepoPolicy(t *testing.T, root, name, rego string) {
	t.Helper()
	dir := filepath.Join(root, "policy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir policy dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".rego"), []byte(rego), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
}

func TestLoadRepoOverridesBuiltin(t *testing.T) {
	root := t.TempDir()
	writeRepoPolicy(t, root, "ssh-guard", `package twinsync.policies.services

import rego.v1

deny contains violation if {
	input.provider == "never.matches"
	violation := {"message": "unreachable"}
}`)

	gate := newTestGate(t, WithEnforce(true))
	if err := gate.LoadRepo(context.Background(), root); err != nil {
		t.Fatalf("LoadRepo() error = %v", err)
	}

	p, err := gate.GetPolicy("ssh-guard")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if p.Builtin {
		t.Error("repository policy should replace the built-in")
	}
	if p.Source == "" {
		t.Error("repository policy should record its source file")
	}

	plan := engine.PlanDocument{
		"services.systemd": []engine.Action{{"op": "stop", "name": "ssh"}},
	}
	if err := gate.Check(context.Background(), plan); err != nil {
		t.Fatalf("overridden guard should no longer reject the plan: %v", err)
	}
}

func TestLoadRepoAddsPolicies(t *testing.T) {
	root := t.TempDir()
	writeRepoPolicy(t, root, "cron-guard", `package twinsync.policies.cron

import rego.v1

deny contains violation if {
	input.provider == "cron.user"
	input.action.op == "remove"
	violation := {
		"message": sprintf("plan removes cron entry %s", [input.action.name]),
		"severity": "error",
	}
}`)

	gate := newTestGate(t, WithEnforce(true))
	if err := gate.LoadRepo(context.Background(), root); err != nil {
		t.Fatalf("LoadRepo() error = %v", err)
	}

	if len(gate.ListPolicies()) != len(Builtins())+1 {
		t.Fatalf("expected built-ins plus one repository policy, got %d", len(gate.ListPolicies()))
	}

	plan := engine.PlanDocument{
		"cron.user": []engine.Action{{"op": "remove", "name": "nightly-backup"}},
	}
	err := gate.Check(context.Background(), plan)
	if err == nil {
		t.Fatal("expected repository policy to reject the plan")
	}

	var engErr *engine.EngineError
	if !errors.As(err, &engErr) || engErr.Code != engine.ErrCodePolicyDenied {
		t.Fatalf("expected policy denial, got %v", err)
	}
}

func TestLoadRepoMissingDirIsNoop(t *testing.T) {
	gate := newTestGate(t)

	if err := gate.LoadRepo(context.Background(), t.TempDir()); err != nil {
		t.Fatalf("LoadRepo() on repo without policy dir failed: %v", err)
	}
	if len(gate.ListPolicies()) != len(Builtins()) {
		t.Errorf("expected only built-in policies, got %d", len(gate.ListPolicies()))
	}
}

func TestReloadRestoresBuiltins(t *testing.T) {
	root := t.TempDir()
	writeRepoPolicy(t, root, "ssh-guard", `package twinsync.policies.services

import rego.v1

deny contains violation if {
	input.provider == "never.matches"
	violation := {"message": "unreachable"}
}`)

	gate := newTestGate(t, WithEnforce(true))
	ctx := context.Background()
	if err := gate.LoadRepo(ctx, root); err != nil {
		t.Fatalf("LoadRepo() error = %v", err)
	}

	plan := engine.PlanDocument{
		"services.systemd": []engine.Action{{"op": "stop", "name": "ssh"}},
	}
	if err := gate.Check(ctx, plan); err != nil {
		t.Fatalf("plan should pass with the override in place: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "policy")); err != nil {
		t.Fatalf("remove policy dir: %v", err)
	}
	if err := gate.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if err := gate.Check(ctx, plan); err == nil {
		t.Fatal("built-in guard should reject the plan after reload")
	}

	p, err := gate.GetPolicy("ssh-guard")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if !p.Builtin {
		t.Error("reload should restore the built-in policy")
	}
}

func TestEvaluateBrokenPolicyDegrades(t *testing.T) {
	root := t.TempDir()
	// Divides by an input-derived zero, so the policy compiles but every
	// evaluation fails.
	writeRepoPolicy(t, root, "broken", `package twinsync.policies.broken

import rego.v1

deny contains violation if {
	x := 1 / to_number(object.get(input.action, "divisor", 0))
	violation := {"message": sprintf("%v", [x])}
}`)

	gate := newTestGate(t, WithEnforce(true))
	if err := gate.LoadRepo(context.Background(), root); err != nil {
		t.Fatalf("LoadRepo() error = %v", err)
	}

	plan := engine.PlanDocument{
		"packages.debian": []engine.Action{{"op": "install", "name": "curl"}},
	}
	result, err := gate.Evaluate(context.Background(), plan)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(result.Failures) == 0 {
		t.Error("expected the broken policy to be reported as a failure")
	}
	if result.Denied() {
		t.Error("a broken policy must not deny the plan")
	}

	if err := gate.Check(context.Background(), plan); err != nil {
		t.Fatalf("Check() should pass despite the broken policy: %v", err)
	}
}
