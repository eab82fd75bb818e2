package systemd

import (
	"testing"

	"github.com/twinsync/twinsync/pkg/engine"
)

func servicesDoc(entries ...map[string]interface{}) engine.Document {
	items := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entry)
	}
	return engine.Wrap(fragment, items)
}

func unit(name string, enabled, running bool) map[string]interface{} {
	return map[string]interface{}{"name": name, "enabled": enabled, "running": running}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		desired engine.Document
		live    engine.Document
		want    []engine.Action
	}{
		{
			name:    "enable and start stopped unit",
			desired: servicesDoc(unit("nginx.service", true, true)),
			live:    servicesDoc(unit("nginx.service", false, false)),
			want: []engine.Action{
				{"op": "enable", "name": "nginx.service"},
				{"op": "start", "name": "nginx.service"},
			},
		},
		{
			name:    "disable and stop running unit",
			desired: servicesDoc(unit("telnetd.service", false, false)),
			live:    servicesDoc(unit("telnetd.service", true, true)),
			want: []engine.Action{
				{"op": "disable", "name": "telnetd.service"},
				{"op": "stop", "name": "telnetd.service"},
			},
		},
		{
			name:    "unit in sync",
			desired: servicesDoc(unit("sshd.service", true, true)),
			live:    servicesDoc(unit("sshd.service", true, true)),
			want:    nil,
		},
		{
			name:    "unit unknown to live treated as disabled and stopped",
			desired: servicesDoc(unit("newapp.service", true, true)),
			live:    servicesDoc(),
			want: []engine.Action{
				{"op": "enable", "name": "newapp.service"},
				{"op": "start", "name": "newapp.service"},
			},
		},
		{
			name:    "live-only unit left alone",
			desired: servicesDoc(),
			live:    servicesDoc(unit("cups.service", true, true)),
			want:    nil,
		},
		{
			name:    "enabled but stopped keeps enablement",
			desired: servicesDoc(unit("backup.service", true, false)),
			live:    servicesDoc(unit("backup.service", true, true)),
			want: []engine.Action{
				{"op": "stop", "name": "backup.service"},
			},
		},
	}

	p := &Provider{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Plan(tt.desired, tt.live)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			got := plan[Name]
			if len(got) != len(tt.want) {
				t.Fatalf("Plan() actions = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Op() != tt.want[i].Op() || got[i].Name() != tt.want[i].Name() {
					t.Errorf("action[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
