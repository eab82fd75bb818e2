package engine

import (
	"context"
	"os"
	"reflect"
	"strings"

	"github.com/twinsync/twinsync/pkg/paths"
	"github.com/twinsync/twinsync/pkg/telemetry"
	"github.com/twinsync/twinsync/pkg/yamlutil"
)

// Status compares desired and live documents fragment by fragment.
//
// The comparison is purely structural: two documents are in sync when
// they decode to deeply equal values, regardless of key order in the
// files. It is intentionally provider-independent, so it can disagree
// with what a provider plan would do: a provider may tolerate a
// difference that Status still reports as drift.
func (e *Engine) Status(ctx context.Context) (StatusReport, error) {
	ctx, run := e.beginRun(ctx, "status")
	run.SkipArchive()
	log := e.log.WithRunID(run.ID)
	report := StatusReport{}

	entries, err := os.ReadDir(paths.StateDir(e.tc.RepoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return report, run.End(nil)
		}
		return report, run.End(NewInternalError("read state directory", err).
			WithOperation("status"))
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return report, run.End(ctx.Err())
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		fragment := strings.TrimSuffix(name, ".yaml")

		desired, err := yamlutil.Load(paths.StateFragment(e.tc.RepoRoot, fragment))
		if err != nil {
			return report, run.End(NewValidationError("load desired fragment", err).
				WithFragment(fragment).WithOperation("status"))
		}
		live, err := yamlutil.Load(paths.LiveFragment(e.tc.RepoRoot, fragment))
		if err != nil {
			return report, run.End(NewValidationError("load live fragment", err).
				WithFragment(fragment).WithOperation("status"))
		}

		drift := !reflect.DeepEqual(desired, live)
		report[fragment] = drift
		if drift {
			log.WithFragment(fragment).Debug("fragment drifts")
			e.emit(telemetry.EventTypeDriftDetected, telemetry.EventLevelInfo,
				run.ID, "", "fragment "+fragment+" drifts", nil)
		}
	}

	if e.metrics != nil {
		e.metrics.SetDriftFragments(len(report.Drifted()))
	}
	return report, run.End(nil)
}
