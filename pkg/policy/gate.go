package policy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/twinsync/twinsync/pkg/engine"
	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/telemetry"
)

// Gate reviews plans against loaded policies before apply. It implements
// the engine.Gate interface.
type Gate struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	log      *telemetry.Logger
	enforce  bool
	repoDir  string
}

var _ engine.Gate = (*Gate)(nil)

// compiledPolicy is a policy with its prepared deny query.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithEnforce controls whether error-severity violations fail Check.
// When enforcement is off the gate still evaluates and logs findings.
func WithEnforce(enforce bool) Option {
	return func(g *Gate) {
		g.enforce = enforce
	}
}

// NewGate creates a policy gate with the built-in policies compiled.
func NewGate(log *telemetry.Logger, opts ...Option) (*Gate, error) {
	g := &Gate{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		log:      log.NewComponentLogger("policy-gate"),
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.loadBuiltins(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}
	return g, nil
}

// LoadRepo loads repository policies from <repoRoot>/policy. A policy
// whose name matches a built-in replaces it. A missing directory is not
// an error. The directory is remembered for Reload.
func (g *Gate) LoadRepo(ctx context.Context, repoRoot string) error {
	dir := paths.PolicyDir(repoRoot)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.repoDir = dir

	return g.loadDirLocked(ctx, dir)
}

// Reload recompiles built-in policies and re-reads the repository policy
// directory. Watch mode calls this when policy files change.
func (g *Gate) Reload(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.policies = make(map[string]*compiledPolicy)
	if err := g.loadBuiltins(ctx); err != nil {
		return err
	}
	if g.repoDir == "" {
		return nil
	}
	return g.loadDirLocked(ctx, g.repoDir)
}

// Watch reloads the gate whenever a policy file under <repoRoot>/policy
// changes. Events are processed until ctx is cancelled.
func (g *Gate) Watch(ctx context.Context, repoRoot string) error {
	dir := paths.PolicyDir(repoRoot)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	loader := NewLoader(g.log)
	return loader.Watch(ctx, dir, func() error {
		return g.Reload(ctx)
	})
}

// loadDirLocked compiles every policy found under dir. Callers hold g.mu.
func (g *Gate) loadDirLocked(ctx context.Context, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	loader := NewLoader(g.log)
	policies, err := loader.LoadDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	for i := range policies {
		if existing, ok := g.policies[policies[i].Name]; ok && existing.policy.Builtin {
			g.log.WithField("policy", policies[i].Name).Debug("repository policy replaces built-in")
		}
		if err := g.compileAndStore(ctx, &policies[i]); err != nil {
			return err
		}
	}

	g.log.WithField("count", len(policies)).Debug("repository policies loaded")
	return nil
}

// Check implements engine.Gate. Warning violations are logged; error
// violations fail the plan when enforcement is enabled.
func (g *Gate) Check(ctx context.Context, plan engine.PlanDocument) error {
	result, err := g.Evaluate(ctx, plan)
	if err != nil {
		return engine.NewInternalError("policy evaluation", err).WithOperation("apply")
	}

	for _, failure := range result.Failures {
		g.log.Warnf("policy skipped: %s", failure)
	}
	for _, v := range result.Warnings() {
		g.log.WithField("policy", v.Policy).WithProvider(v.Provider).Warn(v.Message)
	}

	denials := result.Errors()
	if len(denials) == 0 {
		return nil
	}
	if !g.enforce {
		for _, v := range denials {
			g.log.WithField("policy", v.Policy).WithProvider(v.Provider).
				Warnf("policy violation (enforcement off): %s", v.Message)
		}
		return nil
	}

	messages := make([]string, 0, len(denials))
	for _, v := range denials {
		messages = append(messages, v.Message)
	}
	return engine.NewValidationError(
		fmt.Sprintf("plan rejected by policy %s: %s", denials[0].Policy, strings.Join(messages, "; ")), nil).
		WithOperation("apply").WithCode(engine.ErrCodePolicyDenied).
		WithDetail("violations", messages)
}

// Evaluate runs every enabled policy over every pending action in the
// plan. Evaluation failures are collected in Result.Failures rather than
// aborting the review.
func (g *Gate) Evaluate(ctx context.Context, plan engine.PlanDocument) (*Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	started := time.Now()
	result := &Result{}

	for _, name := range g.sortedNames() {
		cp := g.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		for _, provider := range plan.Providers() {
			for _, action := range plan[provider] {
				in := ActionInput{Provider: provider, Action: action}
				violations, err := g.evalAction(ctx, cp, in)
				if err != nil {
					g.log.WithError(err).WithField("policy", name).Warn("policy evaluation failed")
					result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", name, err))
					continue
				}
				result.Violations = append(result.Violations, violations...)
			}
		}
	}

	g.log.WithField("violations", len(result.Violations)).
		WithField("duration", time.Since(started).String()).
		Debug("plan policy evaluation completed")
	return result, nil
}

// evalAction evaluates a single compiled policy against one action.
func (g *Gate) evalAction(ctx context.Context, cp *compiledPolicy, in ActionInput) ([]Violation, error) {
	rs, err := cp.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, res := range rs {
		for _, expr := range res.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, raw := range denySet {
				violations = append(violations, buildViolation(cp.policy, raw, in))
			}
		}
	}
	return violations, nil
}

// buildViolation converts a raw deny result into a Violation. A violation
// object may carry its own message and severity; a bare string becomes
// the message with the policy default severity.
func buildViolation(p *Policy, raw interface{}, in ActionInput) Violation {
	v := Violation{
		Policy:   p.Name,
		Provider: in.Provider,
		Action:   in.Action.String(),
		Severity: p.Severity,
	}

	switch val := raw.(type) {
	case string:
		v.Message = val
	case map[string]interface{}:
		if msg, ok := val["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := val["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
	default:
		v.Message = fmt.Sprintf("%v", raw)
	}
	return v
}

// compileAndStore parses a policy, prepares its deny query, and stores it.
func (g *Gate) compileAndStore(ctx context.Context, p *Policy) error {
	module, err := ast.ParseModule(p.Name, p.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy %s: %w", p.Name, err)
	}

	// Strict builtin errors so a buggy policy surfaces as a reported
	// failure instead of silently never matching.
	query, err := rego.New(
		rego.Module(p.Name, p.Rego),
		rego.Store(g.store),
		rego.Query(module.Package.Path.String()+".deny"),
		rego.StrictBuiltinErrors(true),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare policy %s: %w", p.Name, err)
	}

	g.policies[p.Name] = &compiledPolicy{
		policy:   p,
		query:    query,
		compiled: time.Now(),
	}
	return nil
}

// loadBuiltins compiles the shipped policies. Callers hold g.mu or run
// during construction.
func (g *Gate) loadBuiltins(ctx context.Context) error {
	builtins := Builtins()
	for i := range builtins {
		if err := g.compileAndStore(ctx, &builtins[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}
	return nil
}

// GetPolicy returns a loaded policy by name.
func (g *Gate) GetPolicy(name string) (*Policy, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cp, exists := g.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (g *Gate) ListPolicies() []Policy {
	g.mu.RLock()
	defer g.mu.RUnlock()

	policies := make([]Policy, 0, len(g.policies))
	for _, name := range g.sortedNames() {
		policies = append(policies, *g.policies[name].policy)
	}
	return policies
}

// sortedNames returns policy names in deterministic order. Callers hold
// at least a read lock.
func (g *Gate) sortedNames() []string {
	names := make([]string, 0, len(g.policies))
	for name := range g.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
