// Package croncfg captures the invoking user's crontab and replaces it
// wholesale when the desired table differs.
package croncfg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/sysexec"
)

// Name is the provider name and manifest entrypoint.
const Name = "cron.user"

const fragment = "cron"

func init() {
	engine.Register(Name, func() engine.ConfigProvider { return &Provider{} })
}

// Provider manages the user crontab as a single document.
type Provider struct{}

// Detect reports whether the crontab command is available.
func (p *Provider) Detect(ctx context.Context, tc *engine.TwinContext) bool {
	return sysexec.CommandExists("crontab")
}

// DumpState reads the current crontab. A missing crontab (crontab -l
// exits non-zero) is captured as an empty table.
func (p *Provider) DumpState(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	res := sysexec.Run(ctx, "crontab", []string{"-l"})
	if !res.Success() {
		return engine.Wrap(fragment, emptyTable()), nil
	}
	return engine.Wrap(fragment, tableFromContent(res.Stdout)), nil
}

func emptyTable() map[string]interface{} {
	return map[string]interface{}{"content": "", "entries": []interface{}{}}
}

// tableFromContent splits a crontab into its full text and the active
// entry lines (comments and blanks dropped).
func tableFromContent(content string) map[string]interface{} {
	entries := make([]interface{}, 0)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return map[string]interface{}{"content": content, "entries": entries}
}

// Plan emits a single update action when the desired crontab text
// differs from the live one. Comparison is on the whole text, so
// comment and ordering changes count as drift.
func (p *Provider) Plan(desired, live engine.Document) (engine.PlanDocument, error) {
	desiredContent := tableContent(desired)
	liveContent := tableContent(live)

	var actions []engine.Action
	if desiredContent != liveContent {
		actions = append(actions, engine.Action{"op": "update", "content": desiredContent})
	}
	return engine.PlanDocument{Name: actions}, nil
}

// Apply installs the desired crontab through a temporary file, backing
// up the previous table to ~/.crontab.twinbak-<timestamp> first.
func (p *Provider) Apply(ctx context.Context, actions []engine.Action, tc *engine.TwinContext) ([]engine.ActionResult, error) {
	results := make([]engine.ActionResult, 0, len(actions))
	for _, action := range actions {
		if action.Op() != "update" {
			results = append(results, engine.ActionResult{
				Action:  action,
				Success: false,
				Message: "unknown op " + action.Op(),
			})
			continue
		}
		content, _ := action["content"].(string)
		results = append(results, p.update(ctx, action, content))
	}
	return results, nil
}

func (p *Provider) update(ctx context.Context, action engine.Action, content string) engine.ActionResult {
	fail := func(msg string) engine.ActionResult {
		return engine.ActionResult{Action: action, Success: false, Message: msg}
	}

	if current := sysexec.Run(ctx, "crontab", []string{"-l"}); current.Success() {
		if err := backupTable(current.Stdout); err != nil {
			// keep going, the backup is best effort
			_ = err
		}
	}

	tmp, err := os.CreateTemp("", "twinsync-*.cron")
	if err != nil {
		return fail("create temp crontab: " + err.Error())
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fail("write temp crontab: " + err.Error())
	}
	if err := tmp.Close(); err != nil {
		return fail("close temp crontab: " + err.Error())
	}

	res := sysexec.Run(ctx, "crontab", []string{tmpPath})
	if !res.Success() {
		return fail(res.Message())
	}
	return engine.ActionResult{Action: action, Success: true}
}

func backupTable(content string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	backup := filepath.Join(home, ".crontab.twinbak-"+time.Now().Format("20060102150405"))
	return os.WriteFile(backup, []byte(content), 0o600)
}

func tableContent(doc engine.Document) string {
	table, _ := doc.Fragment(fragment).(map[string]interface{})
	content, _ := table["content"].(string)
	return content
}
