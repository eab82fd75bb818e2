package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the reconciliation engine.
// When the configuration disables metrics every method is a no-op, so
// callers never need to guard observation sites.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// Provider metrics
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	// Plan and apply metrics
	actionsPlanned *prometheus.CounterVec
	actionsApplied *prometheus.CounterVec

	// Drift metrics
	driftFragments prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "twinsync"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total engine runs by operation and status",
			},
			[]string{"operation", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of engine runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total provider call failures",
			},
			[]string{"provider", "operation"},
		),
		actionsPlanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_planned_total",
				Help:      "Total corrective actions produced by plan runs",
			},
			[]string{"provider"},
		),
		actionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_applied_total",
				Help:      "Total corrective actions dispatched by apply runs",
			},
			[]string{"provider", "op"},
		),
		driftFragments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "drift_fragments",
				Help:      "Number of fragments currently flagged as drifted",
			},
		),
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.providerDuration,
		m.providerErrors,
		m.actionsPlanned,
		m.actionsApplied,
		m.driftFragments,
	)

	return m, nil
}

// Enabled reports whether metrics collection is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.config.Enabled
}

// ObserveRun records a completed engine run.
func (m *Metrics) ObserveRun(operation, status string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.runsTotal.WithLabelValues(operation, status).Inc()
	m.runDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(provider, operation string, duration time.Duration, err error) {
	if !m.Enabled() {
		return
	}
	m.providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	if err != nil {
		m.providerErrors.WithLabelValues(provider, operation).Inc()
	}
}

// AddActionsPlanned counts actions emitted for a provider by a plan run.
func (m *Metrics) AddActionsPlanned(provider string, n int) {
	if !m.Enabled() || n == 0 {
		return
	}
	m.actionsPlanned.WithLabelValues(provider).Add(float64(n))
}

// AddActionApplied counts one dispatched action.
func (m *Metrics) AddActionApplied(provider, op string) {
	if !m.Enabled() {
		return
	}
	m.actionsApplied.WithLabelValues(provider, op).Inc()
}

// SetDriftFragments records the drift gauge after a status run.
func (m *Metrics) SetDriftFragments(n int) {
	if !m.Enabled() {
		return
	}
	m.driftFragments.Set(float64(n))
}

// Handler returns an HTTP handler serving the metrics registry.
// Returns nil when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
