// Package journal summarizes the systemd journal for the rotating log
// index: total disk usage plus the number of recent error entries.
package journal

import (
	"context"
	"strings"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/sysexec"
)

// Name is the provider name and manifest entrypoint.
const Name = "logs.systemd_journal"

const indexKey = "systemd_journal"

func init() {
	engine.RegisterLogs(Name, func() engine.LogsProvider { return &Provider{} })
}

// Provider summarizes journalctl output.
type Provider struct{}

// Detect reports whether journalctl is available.
func (p *Provider) Detect(ctx context.Context, tc *engine.TwinContext) bool {
	return sysexec.CommandExists("journalctl")
}

// DumpLogs probes journal disk usage and the error count for the last
// hour. Failed probes degrade to zero values.
func (p *Provider) DumpLogs(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	usage := parseDiskUsage(sysexec.Output(ctx, "journalctl", "--disk-usage"))
	errOut := sysexec.Output(ctx, "journalctl", "-p", "err", "-S", "-1h", "-q", "--no-pager")

	return engine.Document{indexKey: map[string]interface{}{
		"disk_usage":    usage,
		"recent_errors": countLines(errOut),
	}}, nil
}

// parseDiskUsage extracts the size token from journalctl --disk-usage
// output ("Archived and active journals take up 56.0M in the file
// system."). Unrecognized output is passed through untouched.
func parseDiskUsage(out string) string {
	const marker = "take up "
	start := strings.Index(out, marker)
	if start < 0 {
		return strings.TrimSpace(out)
	}
	rest := out[start+len(marker):]
	if end := strings.Index(rest, " "); end > 0 {
		return rest[:end]
	}
	return strings.TrimSpace(rest)
}

func countLines(out string) int {
	if strings.TrimSpace(out) == "" {
		return 0
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
