package engine

import (
	"context"
)

// ConfigProvider captures, diffs, and corrects one slice of system
// configuration. Implementations are stateless; all inputs arrive as
// arguments and all repository settings come from the TwinContext.
type ConfigProvider interface {
	// DumpState inspects the live system and returns every fragment the
	// provider owns, keyed by fragment name. The engine extracts each
	// declared fragment from the returned document; an absent key is
	// treated as an empty fragment.
	DumpState(ctx context.Context, tc *TwinContext) (Document, error)

	// Plan diffs a desired fragment document against the matching live
	// document and returns corrective actions keyed by provider name.
	// Both documents are wrapped under the fragment key; missing state
	// arrives as an empty document, never nil maps inside.
	Plan(desired, live Document) (PlanDocument, error)

	// Apply executes previously planned actions against the live system.
	// Individual action failures are reported in the results, not as an
	// error; an error means the provider could not run at all.
	Apply(ctx context.Context, actions []Action, tc *TwinContext) ([]ActionResult, error)
}

// LogsProvider contributes a summary block to the rotating log index.
type LogsProvider interface {
	// DumpLogs returns index entries keyed by source name. Entries are
	// merged into logs/current/index.yaml; later providers win on key
	// collisions.
	DumpLogs(ctx context.Context, tc *TwinContext) (Document, error)
}

// Detector is an optional interface for providers that are only
// meaningful on some systems. Providers that do not implement it are
// always considered available.
type Detector interface {
	Detect(ctx context.Context, tc *TwinContext) bool
}

// available reports whether the provider wants to run on this system.
func available(ctx context.Context, impl interface{}, tc *TwinContext) bool {
	if d, ok := impl.(Detector); ok {
		return d.Detect(ctx, tc)
	}
	return true
}
