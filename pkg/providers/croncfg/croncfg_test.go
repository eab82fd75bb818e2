package croncfg

import (
	"testing"

	"github.com/twinsync/twinsync/pkg/engine"
)

func cronDoc(content string) engine.Document {
	return engine.Wrap(fragment, tableFromContent(content))
}

func TestTableFromContent(t *testing.T) {
	content := "# backups\n0 2 * * * /usr/local/bin/backup\n\n*/5 * * * * /usr/bin/probe\n"
	table := tableFromContent(content)

	if table["content"] != content {
		t.Errorf("content = %q, want original text preserved", table["content"])
	}
	entries := table["entries"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("entries = %v, want 2 active lines", entries)
	}
	if entries[0] != "0 2 * * * /usr/local/bin/backup" {
		t.Errorf("entries[0] = %v", entries[0])
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name       string
		desired    string
		live       string
		wantUpdate bool
	}{
		{
			name:       "identical tables",
			desired:    "0 2 * * * /usr/local/bin/backup\n",
			live:       "0 2 * * * /usr/local/bin/backup\n",
			wantUpdate: false,
		},
		{
			name:       "entry added",
			desired:    "0 2 * * * /usr/local/bin/backup\n0 3 * * * /usr/local/bin/rotate\n",
			live:       "0 2 * * * /usr/local/bin/backup\n",
			wantUpdate: true,
		},
		{
			name:       "comment change is drift",
			desired:    "# nightly\n0 2 * * * /usr/local/bin/backup\n",
			live:       "0 2 * * * /usr/local/bin/backup\n",
			wantUpdate: true,
		},
		{
			name:       "clearing the table",
			desired:    "",
			live:       "0 2 * * * /usr/local/bin/backup\n",
			wantUpdate: true,
		},
		{
			name:       "both empty",
			desired:    "",
			live:       "",
			wantUpdate: false,
		},
	}

	p := &Provider{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Plan(cronDoc(tt.desired), cronDoc(tt.live))
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			actions := plan[Name]
			if tt.wantUpdate {
				if len(actions) != 1 || actions[0].Op() != "update" {
					t.Fatalf("actions = %v, want single update", actions)
				}
				if actions[0]["content"] != tt.desired {
					t.Errorf("update content = %q, want %q", actions[0]["content"], tt.desired)
				}
			} else if len(actions) != 0 {
				t.Errorf("actions = %v, want none", actions)
			}
		})
	}
}

func TestPlanMissingFragments(t *testing.T) {
	p := &Provider{}
	plan, err := p.Plan(engine.Document{}, engine.Document{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan[Name]) != 0 {
		t.Errorf("actions = %v, want none for absent fragments", plan[Name])
	}
}
