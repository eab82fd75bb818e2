// Package filemirror mirrors configured directory roots into the twin.
// Only text files up to one MiB are captured, with content and a short
// hash for change detection; replaced files get a timestamped backup.
package filemirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/twinsync/twinsync/pkg/engine"
)

// Name is the provider name and manifest entrypoint.
const Name = "files.mirror"

const fragment = "files"

const (
	maxFileSize  = 1 << 20
	textProbeLen = 512
)

func init() {
	engine.Register(Name, func() engine.ConfigProvider { return &Provider{} })
}

// Provider mirrors filesystem roots listed in filesystem.roots.
type Provider struct{}

// DumpState walks every configured root and captures eligible files.
// Unreadable entries and missing roots are skipped rather than failing
// the snapshot.
func (p *Provider) DumpState(ctx context.Context, tc *engine.TwinContext) (engine.Document, error) {
	files := make([]interface{}, 0)
	for _, configured := range tc.Config.Filesystem.Roots {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		root, err := resolveRoot(configured)
		if err != nil {
			continue
		}
		// never mirror the filesystem root
		if root == "/" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		files = append(files, collectRoot(root)...)
	}
	return engine.Wrap(fragment, files), nil
}

// resolveRoot expands a leading ~ and makes the path absolute.
func resolveRoot(configured string) (string, error) {
	path := configured
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// collectRoot walks one root and returns an entry per captured file, in
// lexical walk order.
func collectRoot(root string) []interface{} {
	entries := make([]interface{}, 0)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		entry, ok := captureFile(root, path)
		if ok {
			entries = append(entries, entry)
		}
		return nil
	})
	return entries
}

// captureFile builds the mirror entry for one file, declining binaries
// and files over the size limit.
func captureFile(root, path string) (map[string]interface{}, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxFileSize {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if !looksText(data) {
		return nil, false
	}

	relative, err := filepath.Rel(root, path)
	if err != nil {
		return nil, false
	}
	content := strings.ToValidUTF8(string(data), "")
	sum := sha256.Sum256([]byte(content))

	return map[string]interface{}{
		"root":     root,
		"path":     path,
		"relative": relative,
		"size":     int(info.Size()),
		"mode":     formatMode(info.Mode()),
		"mtime":    int(info.ModTime().Unix()),
		"content":  content,
		"hash":     hex.EncodeToString(sum[:])[:16],
	}, true
}

// looksText reports whether the leading probe window is NUL-free.
func looksText(data []byte) bool {
	probe := data
	if len(probe) > textProbeLen {
		probe = probe[:textProbeLen]
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return true
}

// formatMode renders the permission bits, including setuid/setgid and
// sticky, as four octal digits.
func formatMode(mode fs.FileMode) string {
	perm := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		perm |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		perm |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		perm |= 0o1000
	}
	return fmt.Sprintf("%04o", perm)
}

// Plan compares mirrors by path. Files only present in the desired
// document are created; files whose hash changed are replaced. Files
// that exist only on the live system are never deleted.
func (p *Provider) Plan(desired, live engine.Document) (engine.PlanDocument, error) {
	liveByPath := make(map[string]map[string]interface{})
	for _, entry := range fileEntries(live) {
		if path, _ := entry["path"].(string); path != "" {
			liveByPath[path] = entry
		}
	}

	var actions []engine.Action
	for _, want := range fileEntries(desired) {
		path, _ := want["path"].(string)
		if path == "" {
			continue
		}
		current, exists := liveByPath[path]
		if !exists {
			actions = append(actions, engine.Action{
				"op":      "create",
				"path":    path,
				"content": want["content"],
				"mode":    want["mode"],
			})
			continue
		}
		if want["hash"] != current["hash"] {
			actions = append(actions, engine.Action{
				"op":      "replace",
				"path":    path,
				"content": want["content"],
				"mode":    want["mode"],
			})
		}
	}
	return engine.PlanDocument{Name: actions}, nil
}

// Apply writes planned files. Replacements back up the previous content
// to <path>.twinbak-<timestamp> first.
func (p *Provider) Apply(ctx context.Context, actions []engine.Action, tc *engine.TwinContext) ([]engine.ActionResult, error) {
	results := make([]engine.ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, applyAction(action))
	}
	return results, nil
}

func applyAction(action engine.Action) engine.ActionResult {
	path, _ := action["path"].(string)
	content, _ := action["content"].(string)
	mode, _ := action["mode"].(string)

	fail := func(err error) engine.ActionResult {
		return engine.ActionResult{Action: action, Success: false, Message: err.Error()}
	}

	switch action.Op() {
	case "create":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fail(err)
		}
	case "replace":
		if prev, err := os.ReadFile(path); err == nil {
			backup := path + ".twinbak-" + time.Now().Format("20060102150405")
			if err := os.WriteFile(backup, prev, 0o600); err != nil {
				return fail(fmt.Errorf("backup %s: %w", path, err))
			}
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fail(err)
		}
	default:
		return engine.ActionResult{Action: action, Success: false, Message: "unknown op " + action.Op()}
	}

	if mode != "" {
		if parsed, err := strconv.ParseUint(mode, 8, 32); err == nil {
			// best effort, content already in place
			_ = os.Chmod(path, fs.FileMode(parsed))
		}
	}
	return engine.ActionResult{Action: action, Success: true}
}

func fileEntries(doc engine.Document) []map[string]interface{} {
	items, _ := doc.Fragment(fragment).([]interface{})
	entries := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			entries = append(entries, m)
		}
	}
	return entries
}
