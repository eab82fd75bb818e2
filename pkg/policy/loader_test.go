package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDirReadsRegoFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"cron-guard.rego": `# Guards cron entries.
package twinsync.policies.cron

import rego.v1
`,
		"mounts.rego": `package twinsync.policies.mounts

import rego.v1
`,
		"README.md": "not a policy",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	loader := NewLoader(testLogger(t))
	policies, err := loader.LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}

	byName := make(map[string]Policy, len(policies))
	for _, p := range policies {
		byName[p.Name] = p
	}

	guard, ok := byName["cron-guard"]
	if !ok {
		t.Fatal("expected policy named cron-guard")
	}
	if guard.Description != "Guards cron entries." {
		t.Errorf("expected description from leading comment, got %q", guard.Description)
	}
	if guard.Severity != SeverityWarning {
		t.Errorf("expected default warning severity, got %s", guard.Severity)
	}
	if !guard.Enabled {
		t.Error("loaded policies should be enabled")
	}
	if guard.Builtin {
		t.Error("loaded policies must not be marked builtin")
	}
	if guard.Source != filepath.Join(dir, "cron-guard.rego") {
		t.Errorf("unexpected source path %q", guard.Source)
	}

	if _, ok := byName["mounts"]; !ok {
		t.Error("expected policy named mounts")
	}
}

func TestLoadDirEmptyDir(t *testing.T) {
	loader := NewLoader(testLogger(t))

	policies, err := loader.LoadDir(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(policies) != 0 {
		t.Errorf("expected no policies, got %d", len(policies))
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "single comment line",
			content: "# Refuses risky plans.\npackage x\n",
			want:    "Refuses risky plans.",
		},
		{
			name:    "multi line comment block",
			content: "# First line.\n# Second line.\npackage x\n",
			want:    "First line. Second line.",
		},
		{
			name:    "stops at first code line",
			content: "# Header.\npackage x\n# trailing comment\n",
			want:    "Header.",
		},
		{
			name:    "no comments",
			content: "package x\n",
			want:    "",
		},
		{
			name:    "empty file",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDescription(tt.content); got != tt.want {
				t.Errorf("extractDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchTriggersReload(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 1)
	err := loader.Watch(ctx, dir, func() error {
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer loader.StopWatching()

	if err := os.WriteFile(filepath.Join(dir, "new.rego"), []byte("package x\n"), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload after policy file write")
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 1)
	err := loader.Watch(ctx, dir, func() error {
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer loader.StopWatching()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("non-rego file must not trigger a reload")
	case <-time.After(1 * time.Second):
	}
}
