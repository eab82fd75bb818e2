package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/telemetry"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// Plan diffs desired state against the last snapshot and persists the
// corrective plan.
//
// Each enabled config provider diffs every fragment it owns; missing
// documents arrive as empty fragments so a provider can plan creation
// from scratch. The merged plan is written to plan/latest.yaml
// unconditionally (an in-sync repository produces an empty plan file)
// and a timestamped copy is kept under plan/history/.
func (e *Engine) Plan(ctx context.Context) (PlanDocument, error) {
	ctx, run := e.beginRun(ctx, "plan")
	log := e.log.WithRunID(run.ID)
	plan := PlanDocument{}

	configs, err := LoadConfigProviders(ctx, e.tc)
	if err != nil {
		return plan, run.End(err)
	}

	for _, handle := range configs {
		if ctx.Err() != nil {
			return plan, run.End(ctx.Err())
		}
		name := handle.Manifest.Name
		_, span := e.providerSpan(ctx, name, "plan")
		started := time.Now()
		fragmentPlan, planErr := e.planProvider(handle)
		e.observeProvider(name, "plan", started, planErr)
		if span != nil {
			telemetry.EndSpan(span, planErr)
		}
		if planErr != nil {
			log.WithProvider(name).WithError(planErr).Warn("provider plan failed, skipping")
			e.emit(telemetry.EventTypeProviderFailed, telemetry.EventLevelWarning,
				run.ID, name, "plan failed", map[string]interface{}{"error": planErr.Error()})
			continue
		}
		for provider, actions := range fragmentPlan {
			plan[provider] = actions
			if e.metrics != nil {
				e.metrics.AddActionsPlanned(provider, len(actions))
			}
			if len(actions) > 0 {
				log.WithProvider(provider).
					WithField("actions", len(actions)).Info("drift detected")
				e.emit(telemetry.EventTypeDriftDetected, telemetry.EventLevelInfo,
					run.ID, provider, "corrective actions planned",
					map[string]interface{}{"actions": len(actions)})
			}
		}
	}

	if err := yamlutil.Dump(paths.PlanLatestFile(e.tc.RepoRoot), plan); err != nil {
		return plan, run.End(NewInternalError("write plan", err).WithOperation("plan"))
	}
	if err := e.archivePlan(plan); err != nil {
		log.WithError(err).Warn("failed to archive plan copy")
	}

	log.WithField("providers", len(plan)).
		WithField("actions", plan.Total()).Info("plan complete")
	return plan, run.End(nil)
}

// planProvider runs one provider's diff across all fragments it owns.
func (e *Engine) planProvider(handle ConfigHandle) (PlanDocument, error) {
	merged := PlanDocument{}
	for _, fragment := range handle.Manifest.Provides.StateFragments {
		desiredRaw, err := yamlutil.Load(paths.StateFragment(e.tc.RepoRoot, fragment))
		if err != nil {
			return nil, NewProviderRuntimeError("load desired fragment", err).
				WithProvider(handle.Manifest.Name).WithFragment(fragment).WithOperation("plan")
		}
		liveRaw, err := yamlutil.Load(paths.LiveFragment(e.tc.RepoRoot, fragment))
		if err != nil {
			return nil, NewProviderRuntimeError("load live fragment", err).
				WithProvider(handle.Manifest.Name).WithFragment(fragment).WithOperation("plan")
		}
		desired := Wrap(fragment, fragmentPayload(desiredRaw, fragment))
		live := Wrap(fragment, fragmentPayload(liveRaw, fragment))

		fragmentPlan, err := handle.Impl.Plan(desired, live)
		if err != nil {
			return nil, NewProviderRuntimeError("provider plan", err).
				WithProvider(handle.Manifest.Name).WithFragment(fragment).WithOperation("plan")
		}
		for provider, actions := range fragmentPlan {
			merged[provider] = actions
		}
	}
	return merged, nil
}

// fragmentPayload extracts the fragment payload from a raw document,
// defaulting to an empty mapping like a missing file would.
func fragmentPayload(raw map[string]interface{}, fragment string) interface{} {
	if payload, ok := raw[fragment]; ok && payload != nil {
		return payload
	}
	return map[string]interface{}{}
}

// LoadPlan reads the persisted plan. A missing plan file yields an
// empty plan, mirroring how missing state documents behave.
func LoadPlan(repoRoot string) (PlanDocument, error) {
	path := paths.PlanLatestFile(repoRoot)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PlanDocument{}, nil
		}
		return nil, NewInternalError("read plan", err).WithOperation("apply")
	}
	plan := PlanDocument{}
	if err := yamlutil.Unmarshal(data, &plan); err != nil {
		return nil, NewValidationError("parse plan", err).WithOperation("apply")
	}
	if plan == nil {
		plan = PlanDocument{}
	}
	return plan, nil
}

// archivePlan copies the freshly written plan into plan/history and
// prunes the oldest copies beyond the configured retention.
func (e *Engine) archivePlan(plan PlanDocument) error {
	historyDir := paths.PlanHistoryDir(e.tc.RepoRoot)
	stamp := paths.RotationStamp(time.Now())
	if err := yamlutil.Dump(paths.PlanHistoryFile(e.tc.RepoRoot, stamp), plan); err != nil {
		return err
	}

	keep := e.tc.Config.Retention.PlanHistory
	entries, err := os.ReadDir(historyDir)
	if err != nil {
		return err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	// rotation stamps sort chronologically
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(historyDir, name)); err != nil {
			return err
		}
	}
	return nil
}
