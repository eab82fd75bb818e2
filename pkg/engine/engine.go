package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/twinsync/twinsync/pkg/telemetry"
)

// Gate reviews a plan before apply. Implementations return a classified
// error to block execution; nil lets the plan through.
type Gate interface {
	Check(ctx context.Context, plan PlanDocument) error
}

// Archiver persists run summaries and execution records outside the
// repository YAML, so the capped plan_execution list can stay short
// without losing history.
type Archiver interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	RecordExecution(ctx context.Context, runID string, rec ExecutionRecord, results []ActionResult) error
}

// Engine drives the reconciliation workflow against one twin repository.
type Engine struct {
	tc      *TwinContext
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	bus     *telemetry.EventBus
	archive Archiver
	gate    Gate
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer attaches a tracer for run and provider spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithEvents attaches an event bus for run lifecycle events.
func WithEvents(bus *telemetry.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithArchiver attaches a history archive.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archive = a }
}

// WithGate attaches a policy gate consulted before apply.
func WithGate(g Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// New builds an engine for the given repository context. The logger is
// required; telemetry extras are optional.
func New(tc *TwinContext, log *telemetry.Logger, opts ...Option) *Engine {
	e := &Engine{
		tc:  tc,
		log: log.NewComponentLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Context returns the repository context the engine operates on.
func (e *Engine) Context() *TwinContext {
	return e.tc
}

func newRunID() string {
	return uuid.NewString()
}

// runScope tracks one engine run from start to finish: span, metrics,
// lifecycle events, and the archived summary all hang off it.
type runScope struct {
	e           *Engine
	ctx         context.Context
	ID          string
	operation   string
	started     time.Time
	span        trace.Span
	noop        bool
	skipArchive bool
	detail      string
}

// beginRun opens a run span and emits the started event.
func (e *Engine) beginRun(ctx context.Context, operation string) (context.Context, *runScope) {
	run := &runScope{
		e:         e,
		ID:        newRunID(),
		operation: operation,
		started:   time.Now(),
	}
	if e.tracer != nil {
		ctx, run.span = e.tracer.StartRun(ctx, operation, run.ID)
	}
	run.ctx = ctx
	e.emit(telemetry.EventTypeRunStarted, telemetry.EventLevelInfo, run.ID, "",
		operation+" started", nil)
	return ctx, run
}

// SetNoop marks the run as having found nothing to do.
func (r *runScope) SetNoop(detail string) {
	r.noop = true
	r.detail = detail
}

// SkipArchive keeps the run out of the history archive. Read-only
// operations use it so repeated checks do not pile up as history rows.
func (r *runScope) SkipArchive() {
	r.skipArchive = true
}

// End closes the span, records run metrics, emits the terminal event,
// and archives the run summary. It returns err unchanged so callers can
// use it in a return statement.
func (r *runScope) End(err error) error {
	status := RunStatusOK
	eventType := telemetry.EventTypeRunCompleted
	level := telemetry.EventLevelInfo
	switch {
	case err != nil:
		status = RunStatusFailed
		eventType = telemetry.EventTypeRunFailed
		level = telemetry.EventLevelError
	case r.noop:
		status = RunStatusNoop
	}
	if r.span != nil {
		telemetry.EndSpan(r.span, err)
	}
	if r.e.metrics != nil {
		r.e.metrics.ObserveRun(r.operation, status, time.Since(r.started))
	}
	r.e.emit(eventType, level, r.ID, "", r.operation+" "+status, nil)
	if r.skipArchive {
		return err
	}
	detail := r.detail
	if err != nil {
		detail = err.Error()
	}
	r.e.archiveRun(r.ctx, RunRecord{
		ID:         r.ID,
		Operation:  r.operation,
		Status:     status,
		StartedAt:  r.started,
		FinishedAt: time.Now(),
		Detail:     detail,
	})
	return err
}

// providerSpan opens a provider span when tracing is enabled.
func (e *Engine) providerSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, nil
	}
	return e.tracer.StartProvider(ctx, provider, operation)
}

func (e *Engine) observeProvider(provider, operation string, started time.Time, err error) {
	if e.metrics != nil {
		e.metrics.ObserveProvider(provider, operation, time.Since(started), err)
	}
}

func (e *Engine) emit(eventType, level, runID, provider, message string, data map[string]interface{}) {
	e.bus.Publish(telemetry.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		RunID:     runID,
		Provider:  provider,
		Message:   message,
		Level:     level,
		Data:      data,
	})
}

// archiveRun stores the run summary. Archive failures are logged and
// swallowed; history must never break a run.
func (e *Engine) archiveRun(ctx context.Context, rec RunRecord) {
	if e.archive == nil {
		return
	}
	if err := e.archive.RecordRun(ctx, rec); err != nil {
		e.log.WithRunID(rec.ID).WithError(err).Warn("failed to archive run record")
	}
}

func (e *Engine) archiveExecution(ctx context.Context, runID string, rec ExecutionRecord, results []ActionResult) {
	if e.archive == nil {
		return
	}
	if err := e.archive.RecordExecution(ctx, runID, rec, results); err != nil {
		e.log.WithRunID(runID).WithProvider(rec.Provider).WithError(err).
			Warn("failed to archive execution record")
	}
}

