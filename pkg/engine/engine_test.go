package engine

import (
	"context"
	"testing"

	"github.com/twinsync/twinsync/pkg/config"
	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/telemetry"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// scriptedProvider is a config provider whose behavior tests adjust
// between runs. Factories return package-level instances, so a test
// mutates the instance and then drives the engine.
type scriptedProvider struct {
	fragment string
	payload  interface{}
	dumpErr  error
	planFn   func(desired, live Document) (PlanDocument, error)
	applyFn  func(actions []Action) ([]ActionResult, error)
	applyErr error
	detectOK bool

	dumped  int
	applied [][]Action
}

func (p *scriptedProvider) reset(fragment string) {
	*p = scriptedProvider{fragment: fragment, detectOK: true}
}

func (p *scriptedProvider) Detect(ctx context.Context, tc *TwinContext) bool {
	return p.detectOK
}

func (p *scriptedProvider) DumpState(ctx context.Context, tc *TwinContext) (Document, error) {
	p.dumped++
	if p.dumpErr != nil {
		return nil, p.dumpErr
	}
	if p.payload == nil {
		return Document{}, nil
	}
	return Wrap(p.fragment, p.payload), nil
}

func (p *scriptedProvider) Plan(desired, live Document) (PlanDocument, error) {
	if p.planFn != nil {
		return p.planFn(desired, live)
	}
	return PlanDocument{}, nil
}

func (p *scriptedProvider) Apply(ctx context.Context, actions []Action, tc *TwinContext) ([]ActionResult, error) {
	if p.applyErr != nil {
		return nil, p.applyErr
	}
	p.applied = append(p.applied, actions)
	if p.applyFn != nil {
		return p.applyFn(actions)
	}
	results := make([]ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, ActionResult{Action: action, Success: true})
	}
	return results, nil
}

// scriptedLogs is a logs provider returning a fixed index payload.
type scriptedLogs struct {
	payload Document
	dumpErr error
}

func (p *scriptedLogs) DumpLogs(ctx context.Context, tc *TwinContext) (Document, error) {
	if p.dumpErr != nil {
		return nil, p.dumpErr
	}
	return p.payload, nil
}

var (
	fakeAlpha = &scriptedProvider{}
	fakeBeta  = &scriptedProvider{}
	fakeLogA  = &scriptedLogs{}
	fakeLogB  = &scriptedLogs{}
)

func init() {
	Register("test.alpha", func() ConfigProvider { return fakeAlpha })
	Register("test.beta", func() ConfigProvider { return fakeBeta })
	RegisterLogs("test.loga", func() LogsProvider { return fakeLogA })
	RegisterLogs("test.logb", func() LogsProvider { return fakeLogB })
}

// newTestContext builds a repository in a temp dir with the given
// providers enabled.
func newTestContext(t *testing.T, enable ...string) *TwinContext {
	t.Helper()
	root := t.TempDir()
	if err := paths.EnsureLayout(root); err != nil {
		t.Fatalf("EnsureLayout() error = %v", err)
	}
	cfg := config.Default()
	cfg.Providers.Enable = enable
	if err := config.Save(root, cfg); err != nil {
		t.Fatalf("config.Save() error = %v", err)
	}
	return &TwinContext{RepoRoot: root, Config: cfg}
}

// writeTestManifest drops a plugin.yaml under plugins/<dir>.
func writeTestManifest(t *testing.T, root, dir, name, kind, entrypoint string, fragments ...string) {
	t.Helper()
	m := map[string]interface{}{
		"name":       name,
		"kind":       kind,
		"entrypoint": entrypoint,
	}
	if len(fragments) > 0 {
		frags := make([]interface{}, 0, len(fragments))
		for _, f := range fragments {
			frags = append(frags, f)
		}
		m["provides"] = map[string]interface{}{"state_fragments": frags}
	}
	if err := yamlutil.Dump(paths.ManifestFile(root, dir), m); err != nil {
		t.Fatalf("write manifest %s: %v", dir, err)
	}
}

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  "error",
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return log
}

func newTestEngine(t *testing.T, tc *TwinContext, opts ...Option) *Engine {
	t.Helper()
	return New(tc, testLogger(t), opts...)
}
