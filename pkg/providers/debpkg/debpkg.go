// Package debpkg reconciles the Debian package set. The live inventory
// comes from dpkg-query; corrective actions run apt-get under sudo.
package debpkg

import (
	"context"
	"strings"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/sysexec"
)

// Name is the provider name and the entrypoint referenced by the
// bundled plugin manifest.
const Name = "packages.debian"

const fragment = "packages"

func init() {
	engine.Register(Name, func() engine.ConfigProvider { return &Provider{} })
}

// Provider manages Debian packages via dpkg and apt-get.
type Provider struct{}

// Detect reports whether dpkg-query is available on this system.
func (p *Provider) Detect(ctx context.Context, tc *engine.TwinContext) bool {
	return sysexec.CommandExists("dpkg-query")
}

// DumpState inventories every installed package with its version.
func (p *Provider) DumpState(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	res := sysexec.Run(ctx, "dpkg-query", []string{"-W", "-f=${Package}\t${Version}\n"})
	if res.Err != nil {
		return nil, engine.NewProviderRuntimeError("dpkg-query failed", res.Err).
			WithProvider(Name).WithOperation("dump_state")
	}
	return engine.Wrap(fragment, parseInventory(res.Stdout)), nil
}

// parseInventory converts dpkg-query tab-separated lines into package
// entries. Malformed lines are dropped.
func parseInventory(out string) []interface{} {
	packages := make([]interface{}, 0)
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, version, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		packages = append(packages, map[string]interface{}{
			"name":      name,
			"source":    "apt",
			"installed": true,
			"version":   strings.TrimSpace(version),
		})
	}
	return packages
}

// Plan diffs the desired package set against the live inventory.
//
// A desired entry defaults to ensure: present. Packages present on the
// system but absent from the desired set are planned for removal, so
// the desired document is authoritative for the whole package list.
func (p *Provider) Plan(desired, live engine.Document) (engine.PlanDocument, error) {
	desiredEntries := packageEntries(desired)
	liveEntries := packageEntries(live)

	desiredNames := make(map[string]bool, len(desiredEntries))
	for _, entry := range desiredEntries {
		if name, _ := entry["name"].(string); name != "" {
			desiredNames[name] = true
		}
	}
	liveNames := make(map[string]bool, len(liveEntries))
	for _, entry := range liveEntries {
		if name, _ := entry["name"].(string); name != "" {
			liveNames[name] = true
		}
	}

	var actions []engine.Action
	for _, entry := range desiredEntries {
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		ensure, _ := entry["ensure"].(string)
		if ensure == "" {
			ensure = "present"
		}
		installed := liveNames[name]
		switch {
		case ensure == "present" && !installed:
			actions = append(actions, engine.Action{"op": "install", "name": name})
		case ensure == "absent" && installed:
			actions = append(actions, engine.Action{"op": "remove", "name": name})
		}
	}
	for _, entry := range liveEntries {
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		if !desiredNames[name] {
			actions = append(actions, engine.Action{"op": "remove", "name": name})
		}
	}
	return engine.PlanDocument{Name: actions}, nil
}

// Apply installs and removes packages one action at a time. A failed
// apt-get invocation becomes a failed action result, not an error.
func (p *Provider) Apply(ctx context.Context, actions []engine.Action, tc *engine.TwinContext) ([]engine.ActionResult, error) {
	results := make([]engine.ActionResult, 0, len(actions))
	for _, action := range actions {
		name := action.Name()
		var res *sysexec.Result
		switch action.Op() {
		case "install":
			res = sysexec.Run(ctx, "sudo", []string{"apt-get", "install", "-y", name})
		case "remove":
			res = sysexec.Run(ctx, "sudo", []string{"apt-get", "remove", "-y", name})
		default:
			results = append(results, engine.ActionResult{
				Action:  action,
				Success: false,
				Message: "unknown op " + action.Op(),
			})
			continue
		}
		result := engine.ActionResult{Action: action, Success: res.Success()}
		if !result.Success {
			result.Message = res.Message()
		}
		results = append(results, result)
	}
	return results, nil
}

// packageEntries returns the fragment's package list in document order.
func packageEntries(doc engine.Document) []map[string]interface{} {
	items, _ := doc.Fragment(fragment).([]interface{})
	entries := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			entries = append(entries, m)
		}
	}
	return entries
}
