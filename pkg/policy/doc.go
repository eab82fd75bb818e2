// Package policy provides Open Policy Agent (OPA) integration for TwinSync.
//
// This package gates plan application with Rego policies. Every pending
// action in a plan is evaluated individually, so a policy sees one
// provider/action pair at a time and never has to reason about document
// shapes it does not own.
//
// # Architecture
//
// The policy system consists of three main components:
//
//  1. Gate - Compiles policies and reviews plans before apply
//  2. Loader - Loads .rego files from the repository policy directory
//  3. Built-in Policies - Guard rails shipped with the engine
//
// # Usage
//
// Creating a gate and reviewing a plan:
//
//	gate, err := policy.NewGate(log, policy.WithEnforce(true))
//	if err != nil {
//	    return err
//	}
//	if err := gate.LoadRepo(ctx, repoRoot); err != nil {
//	    return err
//	}
//
//	if err := gate.Check(ctx, plan); err != nil {
//	    // plan contains an error-severity violation and enforcement is on
//	}
//
// Check satisfies the engine.Gate interface, so the gate plugs straight
// into engine.WithGate.
//
// # Policy Input
//
// Each action is presented to Rego as:
//
//	{
//	    "provider": "services.systemd",
//	    "action": {"op": "stop", "name": "nginx.service"}
//	}
//
// # Built-in Policies
//
// Two policies ship by default:
//
//  1. package-removal - warns when a plan removes installed packages
//  2. ssh-guard - refuses plans that stop or disable the SSH service
//
// A repository policy file with the same name replaces the built-in, so
// either can be relaxed or tightened per device.
//
// # Custom Policies
//
// Repository policies live in <repo>/policy/*.rego:
//
//	package twinsync.policies.cron
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.provider == "cron.user"
//	    input.action.op == "remove"
//	    violation := {
//	        "message": sprintf("plan removes cron entry %s", [input.action.name]),
//	        "severity": "error",
//	    }
//	}
//
// # Severity Levels
//
// Violations carry one of three severities:
//
//   - info: recorded, never shown as a warning
//   - warning: logged during plan and apply, does not block
//   - error: blocks apply when policy.enforce is set (--force overrides)
//
// A violation object may set its own "severity"; otherwise the policy
// default applies. Policies loaded from .rego files default to warning.
//
// # Hot Reload
//
// Watch mode reloads policies when the repository policy directory
// changes:
//
//	err := loader.Watch(ctx, paths.PolicyDir(root), func() error {
//	    return gate.Reload(ctx)
//	})
//
// Policies are compiled once with OPA's PreparedEvalQuery and reused for
// every action evaluation until the next reload.
package policy
