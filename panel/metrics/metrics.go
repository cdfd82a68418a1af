// Package metrics provides Prometheus metrics for the panel.
//
// A nil *Manager is valid and records nothing, so components take one
// without caring whether metrics are enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithProcessCollectors adds the Go runtime and process collectors.
func WithProcessCollectors() Option {
	return func(m *Manager) { m.process = true }
}

// Manager owns the panel's metrics.
type Manager struct {
	namespace string
	registry  *prometheus.Registry
	process   bool

	framesRendered   prometheus.Counter
	renderPanics     prometheus.Counter
	telemetryFrames  prometheus.Counter
	jointWrites      prometheus.Counter
	unmappedColumns  prometheus.Counter
	malformedSamples prometheus.Counter
	modelLoads       *prometheus.CounterVec
	modelFailures    *prometheus.CounterVec
	staleCompletions prometheus.Counter
	loadDuration     prometheus.Histogram
	modelState       prometheus.Gauge
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{namespace: "urdfpanel", registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	if m.process {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.framesRendered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "frames_rendered_total",
		Help:      "Render loop ticks that produced a frame.",
	})
	m.renderPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "render_panics_total",
		Help:      "Render loop ticks that panicked and were recovered.",
	})
	m.telemetryFrames = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "telemetry",
		Name:      "frames_total",
		Help:      "Telemetry frames applied to the joint targets.",
	})
	m.jointWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "telemetry",
		Name:      "joint_writes_total",
		Help:      "Joint target writes made from telemetry.",
	})
	m.unmappedColumns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "telemetry",
		Name:      "unmapped_columns_total",
		Help:      "Columns that no joint binding refers to.",
	})
	m.malformedSamples = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "telemetry",
		Name:      "malformed_samples_total",
		Help:      "Mapped columns whose last sample was missing or not a finite number.",
	})
	m.modelLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "loads_total",
		Help:      "Model loads started, by variant.",
	}, []string{"variant"})
	m.modelFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "load_failures_total",
		Help:      "Model loads that failed, by variant.",
	}, []string{"variant"})
	m.staleCompletions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "stale_completions_total",
		Help:      "Load completions discarded because a newer selection superseded them.",
	})
	m.loadDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "load_duration_seconds",
		Help:      "Time from load start to completion.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.modelState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "model",
		Name:      "state",
		Help:      "Model lifecycle state: 0 empty, 1 loading, 2 attached, 3 disposing.",
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RegisterMailbox exports the event queue depth and drop count.
func (m *Manager) RegisterMailbox(pending func() int, dropped func() uint64) {
	if m == nil {
		return
	}
	auto := promauto.With(m.registry)
	auto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "events",
		Name:      "pending",
		Help:      "Events queued for the panel execution context.",
	}, func() float64 { return float64(pending()) })
	auto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Events dropped because the queue was full.",
	}, func() float64 { return float64(dropped()) })
}

func (m *Manager) RecordFrameRendered() {
	if m != nil {
		m.framesRendered.Inc()
	}
}

func (m *Manager) RecordRenderPanic() {
	if m != nil {
		m.renderPanics.Inc()
	}
}

// RecordTelemetry records one applied frame.
func (m *Manager) RecordTelemetry(writes, unmapped, malformed int) {
	if m == nil {
		return
	}
	m.telemetryFrames.Inc()
	m.jointWrites.Add(float64(writes))
	m.unmappedColumns.Add(float64(unmapped))
	m.malformedSamples.Add(float64(malformed))
}

func (m *Manager) RecordModelLoad(variant string) {
	if m != nil {
		m.modelLoads.WithLabelValues(variant).Inc()
	}
}

func (m *Manager) RecordModelFailure(variant string) {
	if m != nil {
		m.modelFailures.WithLabelValues(variant).Inc()
	}
}

func (m *Manager) RecordStaleCompletion() {
	if m != nil {
		m.staleCompletions.Inc()
	}
}

func (m *Manager) ObserveLoadDuration(seconds float64) {
	if m != nil {
		m.loadDuration.Observe(seconds)
	}
}

func (m *Manager) SetModelState(state int) {
	if m != nil {
		m.modelState.Set(float64(state))
	}
}
