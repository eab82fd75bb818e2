package sysinfo

import (
	"testing"

	"github.com/twinsync/twinsync/pkg/engine"
)

func TestParseOSRelease(t *testing.T) {
	content := `NAME="Ubuntu"
VERSION="24.04.1 LTS (Noble Numbat)"
ID=ubuntu
ID_LIKE=debian
# a comment
PRETTY_NAME='Ubuntu 24.04'

VERSION_CODENAME=noble
BROKEN LINE
`
	fields := parseOSRelease(content)

	tests := []struct {
		key  string
		want string
	}{
		{"NAME", "Ubuntu"},
		{"VERSION", "24.04.1 LTS (Noble Numbat)"},
		{"ID", "ubuntu"},
		{"PRETTY_NAME", "Ubuntu 24.04"},
		{"VERSION_CODENAME", "noble"},
	}
	for _, tt := range tests {
		if got := fields[tt.key]; got != tt.want {
			t.Errorf("fields[%q] = %q, want %q", tt.key, got, tt.want)
		}
	}
	if _, ok := fields["BROKEN LINE"]; ok {
		t.Errorf("malformed line parsed: %v", fields)
	}
	if len(fields) != 6 {
		t.Errorf("parsed %d fields, want 6", len(fields))
	}
}

func TestPlanAlwaysEmpty(t *testing.T) {
	p := &Provider{}
	plan, err := p.Plan(
		engine.Wrap(fragment, map[string]interface{}{"hostname": "desired"}),
		engine.Wrap(fragment, map[string]interface{}{"hostname": "live"}),
	)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	actions, ok := plan[Name]
	if !ok {
		t.Fatalf("plan = %v, want an entry for %s", plan, Name)
	}
	if len(actions) != 0 {
		t.Errorf("actions = %v, want empty", actions)
	}
}
