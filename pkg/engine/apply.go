package engine

import (
	"context"
	"time"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/telemetry"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// ApplyOptions tunes one apply run.
type ApplyOptions struct {
	// Force bypasses the policy gate. The gate result is still logged.
	Force bool
}

// Apply executes the persisted plan against the live system.
//
// Plan entries whose provider is unknown or no longer enabled are
// skipped silently, so a stale plan/latest.yaml from an earlier
// configuration degrades to a partial apply instead of an error. Each
// dispatched provider contributes one execution record to the
// plan_execution list in the current log index; the list is capped by
// the configured retention, with full history kept in the archive.
func (e *Engine) Apply(ctx context.Context, opts ApplyOptions) (*ApplyReport, error) {
	ctx, run := e.beginRun(ctx, "apply")
	report := &ApplyReport{RunID: run.ID, Failures: make(map[string]string)}
	log := e.log.WithRunID(run.ID)

	plan, err := LoadPlan(e.tc.RepoRoot)
	if err != nil {
		return report, run.End(err)
	}
	if len(plan) == 0 {
		report.Empty = true
		run.SetNoop("empty plan")
		log.Info("no plan to apply")
		return report, run.End(nil)
	}

	if e.gate != nil {
		if gateErr := e.gate.Check(ctx, plan); gateErr != nil {
			if !opts.Force {
				return report, run.End(gateErr)
			}
			log.WithError(gateErr).Warn("policy gate bypassed with force")
		}
	}

	configs, err := LoadConfigProviders(ctx, e.tc)
	if err != nil {
		return report, run.End(err)
	}
	byName := make(map[string]ConfigHandle, len(configs))
	for _, handle := range configs {
		byName[handle.Manifest.Name] = handle
	}

	var records []ExecutionRecord
	for _, provider := range plan.Providers() {
		if ctx.Err() != nil {
			return report, run.End(ctx.Err())
		}
		actions := plan[provider]
		handle, ok := byName[provider]
		if !ok {
			report.Skipped = append(report.Skipped, provider)
			log.WithProvider(provider).Debug("skipping stale plan entry")
			continue
		}

		pctx, span := e.providerSpan(ctx, provider, "apply")
		started := time.Now()
		results, applyErr := handle.Impl.Apply(pctx, actions, e.tc)
		e.observeProvider(provider, "apply", started, applyErr)
		if span != nil {
			telemetry.EndSpan(span, applyErr)
		}
		if applyErr != nil {
			report.Failures[provider] = applyErr.Error()
			log.WithProvider(provider).WithError(applyErr).Warn("provider apply failed")
			e.emit(telemetry.EventTypeProviderFailed, telemetry.EventLevelWarning,
				run.ID, provider, "apply failed",
				map[string]interface{}{"error": applyErr.Error()})
			continue
		}

		for _, res := range results {
			level := telemetry.EventLevelInfo
			if res.Success {
				if e.metrics != nil {
					e.metrics.AddActionApplied(provider, res.Action.Op())
				}
			} else {
				level = telemetry.EventLevelWarning
				log.WithProvider(provider).
					WithField("action", res.Action.String()).
					WithField("message", res.Message).Warn("action failed")
			}
			e.emit(telemetry.EventTypeApplyAction, level, run.ID, provider,
				res.Action.String(), map[string]interface{}{
					"success": res.Success,
					"message": res.Message,
				})
		}

		rec := ExecutionRecord{Provider: provider, Actions: actions}
		records = append(records, rec)
		report.Executed = append(report.Executed, ProviderExecution{Provider: provider, Results: results})
		e.archiveExecution(ctx, run.ID, rec, results)
	}

	if err := e.appendExecutionLog(records); err != nil {
		return report, run.End(err)
	}

	log.WithField("providers", len(report.Executed)).
		WithField("applied", report.TotalApplied()).
		WithField("skipped", len(report.Skipped)).Info("apply complete")
	return report, run.End(nil)
}

// appendExecutionLog appends execution records to the plan_execution
// list in the current log index, trimming the oldest entries beyond the
// configured retention.
func (e *Engine) appendExecutionLog(records []ExecutionRecord) error {
	if len(records) == 0 {
		return nil
	}
	indexPath := paths.LogsIndexFile(e.tc.RepoRoot)
	index, err := yamlutil.Load(indexPath)
	if err != nil {
		return NewInternalError("load log index", err).WithOperation("apply")
	}

	existing, _ := index["plan_execution"].([]interface{})
	for _, rec := range records {
		existing = append(existing, rec)
	}
	if limit := e.tc.Config.Retention.PlanExecution; limit > 0 && len(existing) > limit {
		existing = existing[len(existing)-limit:]
	}
	index["plan_execution"] = existing

	if err := yamlutil.Dump(indexPath, index); err != nil {
		return NewInternalError("write log index", err).WithOperation("apply")
	}
	return nil
}
