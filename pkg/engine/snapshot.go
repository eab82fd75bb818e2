package engine

import (
	"context"
	"os"
	"time"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/telemetry"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// Snapshot captures live system state into the repository.
//
// The previous log window is rotated aside first, then every enabled
// config provider dumps its fragments into live/ and every logs
// provider contributes to the fresh logs/current/index.yaml. A failing
// provider is reported and skipped; it never aborts the run.
func (e *Engine) Snapshot(ctx context.Context) (*SnapshotReport, error) {
	ctx, run := e.beginRun(ctx, "snapshot")
	report := &SnapshotReport{RunID: run.ID, Failures: make(map[string]string)}
	log := e.log.WithRunID(run.ID)

	if err := paths.EnsureLayout(e.tc.RepoRoot); err != nil {
		return report, run.End(NewInternalError("ensure repository layout", err).
			WithOperation("snapshot"))
	}

	rotated, err := e.rotateLogs()
	if err != nil {
		return report, run.End(err)
	}
	report.RotatedTo = rotated
	if rotated != "" {
		log.WithField("rotated_to", rotated).Debug("rotated previous log window")
	}

	configs, err := LoadConfigProviders(ctx, e.tc)
	if err != nil {
		return report, run.End(err)
	}

	for _, handle := range configs {
		if ctx.Err() != nil {
			return report, run.End(ctx.Err())
		}
		name := handle.Manifest.Name
		pctx, span := e.providerSpan(ctx, name, "dump_state")
		started := time.Now()
		payload, dumpErr := handle.Impl.DumpState(pctx, e.tc)
		e.observeProvider(name, "dump_state", started, dumpErr)
		if span != nil {
			telemetry.EndSpan(span, dumpErr)
		}
		if dumpErr != nil {
			msg := dumpErr.Error()
			report.Failures[name] = msg
			log.WithProvider(name).WithError(dumpErr).Warn("provider dump failed, skipping")
			e.emit(telemetry.EventTypeProviderFailed, telemetry.EventLevelWarning,
				run.ID, name, "dump_state failed", map[string]interface{}{"error": msg})
			continue
		}

		for _, fragment := range handle.Manifest.Provides.StateFragments {
			data := payload.Fragment(fragment)
			if data == nil {
				data = map[string]interface{}{}
			}
			path := paths.LiveFragment(e.tc.RepoRoot, fragment)
			if err := yamlutil.Dump(path, Wrap(fragment, data)); err != nil {
				return report, run.End(NewInternalError("write live fragment", err).
					WithProvider(name).WithFragment(fragment).WithOperation("snapshot"))
			}
			report.Fragments = append(report.Fragments, fragment)
			log.WithProvider(name).WithFragment(fragment).Debug("captured live fragment")
		}
	}

	logsProviders, err := LoadLogsProviders(ctx, e.tc)
	if err != nil {
		return report, run.End(err)
	}

	index := make(map[string]interface{})
	for _, handle := range logsProviders {
		if ctx.Err() != nil {
			return report, run.End(ctx.Err())
		}
		name := handle.Manifest.Name
		pctx, span := e.providerSpan(ctx, name, "dump_logs")
		started := time.Now()
		payload, dumpErr := handle.Impl.DumpLogs(pctx, e.tc)
		e.observeProvider(name, "dump_logs", started, dumpErr)
		if span != nil {
			telemetry.EndSpan(span, dumpErr)
		}
		if dumpErr != nil {
			msg := dumpErr.Error()
			report.Failures[name] = msg
			log.WithProvider(name).WithError(dumpErr).Warn("logs provider failed, skipping")
			e.emit(telemetry.EventTypeProviderFailed, telemetry.EventLevelWarning,
				run.ID, name, "dump_logs failed", map[string]interface{}{"error": msg})
			continue
		}
		for key, value := range payload {
			index[key] = value
		}
		report.LogSources = append(report.LogSources, name)
	}

	if len(index) > 0 {
		if err := yamlutil.Dump(paths.LogsIndexFile(e.tc.RepoRoot), index); err != nil {
			return report, run.End(NewInternalError("write log index", err).
				WithOperation("snapshot"))
		}
	}

	log.WithField("fragments", len(report.Fragments)).
		WithField("failures", len(report.Failures)).
		Info("snapshot complete")
	return report, run.End(nil)
}

// rotateLogs moves a non-empty logs/current aside under a UTC stamp and
// recreates an empty current directory. Returns the stamp used, or ""
// when there was nothing to rotate.
func (e *Engine) rotateLogs() (string, error) {
	current := paths.LogsCurrentDir(e.tc.RepoRoot)
	entries, err := os.ReadDir(current)
	if err != nil {
		if os.IsNotExist(err) {
			return "", os.MkdirAll(current, 0o755)
		}
		return "", NewInternalError("read logs/current", err).WithOperation("snapshot")
	}
	if len(entries) == 0 {
		return "", nil
	}

	stamp := paths.RotationStamp(time.Now())
	dest := paths.LogsTimestampDir(e.tc.RepoRoot, stamp)
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return "", NewInternalError("clear rotation target", err).WithOperation("snapshot")
		}
	}
	if err := os.Rename(current, dest); err != nil {
		return "", NewInternalError("rotate logs/current", err).WithOperation("snapshot")
	}
	if err := os.MkdirAll(current, 0o755); err != nil {
		return "", NewInternalError("recreate logs/current", err).WithOperation("snapshot")
	}
	return stamp, nil
}
