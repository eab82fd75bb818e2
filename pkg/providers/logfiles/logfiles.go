// Package logfiles feeds a plain-file log inventory into the rotating
// log index: how many *.log files /var/log holds and their total size.
package logfiles

import (
	"context"
	"os"
	"strings"

	"github.com/twinsync/twinsync/pkg/engine"
)

// Name is the provider name and manifest entrypoint.
const Name = "logs.files"

const indexKey = "files"

const logDir = "/var/log"

func init() {
	engine.RegisterLogs(Name, func() engine.LogsProvider { return &Provider{} })
}

// Provider summarizes plain log files.
type Provider struct{}

// DumpLogs summarizes the log directory. A missing or unreadable
// directory yields a zero summary.
func (p *Provider) DumpLogs(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	return engine.Document{indexKey: summarizeDir(logDir)}, nil
}

func summarizeDir(dir string) map[string]interface{} {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return map[string]interface{}{"entries": 0, "total_bytes": 0}
	}
	count := 0
	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		count++
		total += int(info.Size())
	}
	return map[string]interface{}{"entries": count, "total_bytes": total}
}
