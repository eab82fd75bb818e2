// Package telemetry provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and an in-process event bus for the engine.
//
// Engines receive a Logger and optionally Metrics and an EventBus; all
// three are safe to leave nil-configured (disabled metrics are no-ops,
// an absent bus drops publishes).
package telemetry
