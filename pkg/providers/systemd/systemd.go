// Package systemd captures systemd service unit state and reconciles
// the enabled/running axes through systemctl.
package systemd

import (
	"context"
	"strings"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/sysexec"
)

// Name is the provider name and manifest entrypoint.
const Name = "services.systemd"

const fragment = "services"

func init() {
	engine.Register(Name, func() engine.ConfigProvider { return &Provider{} })
}

// Provider manages systemd service units.
type Provider struct{}

// Detect reports whether systemctl is available.
func (p *Provider) Detect(ctx context.Context, tc *engine.TwinContext) bool {
	return sysexec.CommandExists("systemctl")
}

// DumpState lists every service unit file with its enablement and a
// per-unit is-active probe.
func (p *Provider) DumpState(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	res := sysexec.Run(ctx, "systemctl", []string{"list-unit-files", "--type", "service", "--no-legend"})
	if res.Err != nil {
		return nil, engine.NewProviderRuntimeError("systemctl list-unit-files failed", res.Err).
			WithProvider(Name).WithOperation("dump_state")
	}

	services := make([]interface{}, 0)
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, state := fields[0], fields[1]
		active := sysexec.Output(ctx, "systemctl", "is-active", name)
		services = append(services, map[string]interface{}{
			"name":    name,
			"enabled": strings.ToLower(state) == "enabled",
			"running": active == "active",
		})
	}
	return engine.Wrap(fragment, services), nil
}

// Plan emits enable/disable and start/stop actions for every desired
// unit whose axes disagree with the live state. Units not mentioned in
// the desired document are left alone.
func (p *Provider) Plan(desired, live engine.Document) (engine.PlanDocument, error) {
	liveByName := make(map[string]map[string]interface{})
	for _, entry := range serviceEntries(live) {
		if name, _ := entry["name"].(string); name != "" {
			liveByName[name] = entry
		}
	}

	var actions []engine.Action
	for _, want := range serviceEntries(desired) {
		name, _ := want["name"].(string)
		if name == "" {
			continue
		}
		current := liveByName[name]
		wantEnabled, _ := want["enabled"].(bool)
		wantRunning, _ := want["running"].(bool)
		isEnabled, _ := current["enabled"].(bool)
		isRunning, _ := current["running"].(bool)

		if wantEnabled && !isEnabled {
			actions = append(actions, engine.Action{"op": "enable", "name": name})
		}
		if !wantEnabled && isEnabled {
			actions = append(actions, engine.Action{"op": "disable", "name": name})
		}
		if wantRunning && !isRunning {
			actions = append(actions, engine.Action{"op": "start", "name": name})
		}
		if !wantRunning && isRunning {
			actions = append(actions, engine.Action{"op": "stop", "name": name})
		}
	}
	return engine.PlanDocument{Name: actions}, nil
}

// Apply drives systemctl for each planned action.
func (p *Provider) Apply(ctx context.Context, actions []engine.Action, tc *engine.TwinContext) ([]engine.ActionResult, error) {
	results := make([]engine.ActionResult, 0, len(actions))
	for _, action := range actions {
		op := action.Op()
		switch op {
		case "enable", "disable", "start", "stop":
			res := sysexec.Run(ctx, "sudo", []string{"systemctl", op, action.Name()})
			result := engine.ActionResult{Action: action, Success: res.Success()}
			if !result.Success {
				result.Message = res.Message()
			}
			results = append(results, result)
		default:
			results = append(results, engine.ActionResult{
				Action:  action,
				Success: false,
				Message: "unknown op " + op,
			})
		}
	}
	return results, nil
}

func serviceEntries(doc engine.Document) []map[string]interface{} {
	items, _ := doc.Fragment(fragment).([]interface{})
	entries := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			entries = append(entries, m)
		}
	}
	return entries
}
