// Package sysinfo captures read-only host identity: uname, hostname,
// os-release fields, and the kernel version. It never plans actions.
package sysinfo

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/sysexec"
)

// Name is the provider name and manifest entrypoint.
const Name = "system.info"

const fragment = "system"

const osReleasePath = "/etc/os-release"

func init() {
	engine.Register(Name, func() engine.ConfigProvider { return &Provider{} })
}

// Provider collects host identity facts.
type Provider struct{}

// Detect limits the provider to Linux hosts.
func (p *Provider) Detect(ctx context.Context, tc *engine.TwinContext) bool {
	return runtime.GOOS == "linux"
}

// DumpState gathers uname, hostname, os-release, and kernel release.
// Every probe degrades to an empty value rather than failing.
func (p *Provider) DumpState(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	info := map[string]interface{}{
		"uname":    sysexec.Output(ctx, "uname", "-a"),
		"hostname": sysexec.Hostname(),
		"kernel":   sysexec.Output(ctx, "uname", "-r"),
	}

	release := map[string]interface{}{}
	if data, err := os.ReadFile(osReleasePath); err == nil {
		for key, value := range parseOSRelease(string(data)) {
			release[key] = value
		}
	}
	info["os_release"] = release

	return engine.Wrap(fragment, info), nil
}

// parseOSRelease reads KEY=VALUE lines, stripping surrounding quotes
// and skipping comments.
func parseOSRelease(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		value = strings.Trim(value, `'`)
		fields[key] = value
	}
	return fields
}

// Plan never produces actions: host identity is observational.
func (p *Provider) Plan(desired, live engine.Document) (engine.PlanDocument, error) {
	return engine.PlanDocument{Name: []engine.Action{}}, nil
}

// Apply is a no-op for the read-only fragment.
func (p *Provider) Apply(ctx context.Context, actions []engine.Action, tc *engine.TwinContext) ([]engine.ActionResult, error) {
	return []engine.ActionResult{}, nil
}
