package runtime

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexcodex/codebase/framework"
)

// Metrics turns telemetry events into Prometheus series on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	runs         prometheus.Counter
	rejected     prometheus.Counter
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	totalLines   prometheus.Gauge
	projectLines *prometheus.GaugeVec
	projectFiles *prometheus.GaugeVec
	projectErrs  *prometheus.GaugeVec
	fileErrors   *prometheus.CounterVec
	missing      *prometheus.CounterVec
}

// NewMetrics registers the collectors, including the Go and process
// collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "codebase",
			Subsystem: "inspector",
			Name:      "runs_total",
			Help:      "Completed inspection runs",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "codebase",
			Subsystem: "inspector",
			Name:      "rejected_total",
			Help:      "Scan requests refused because a run was active",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "codebase",
			Subsystem: "inspector",
			Name:      "run_duration_seconds",
			Help:      "Wall time of inspection runs",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "codebase",
			Subsystem: "inspector",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		totalLines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "codebase",
			Name:      "lines",
			Help:      "Lines across all projects in the last run",
		}),
		projectLines: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codebase",
			Subsystem: "project",
			Name:      "lines",
			Help:      "Lines counted per project",
		}, []string{"project"}),
		projectFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codebase",
			Subsystem: "project",
			Name:      "files",
			Help:      "Files counted per project",
		}, []string{"project"}),
		projectErrs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "codebase",
			Subsystem: "project",
			Name:      "errors",
			Help:      "Errors recorded by the last scan of a project",
		}, []string{"project"}),
		fileErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebase",
			Subsystem: "project",
			Name:      "file_errors_total",
			Help:      "Files that could not be counted",
		}, []string{"project"}),
		missing: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebase",
			Subsystem: "project",
			Name:      "missing_total",
			Help:      "Scans of projects whose root was missing",
		}, []string{"project"}),
	}
}

// Emit implements framework.Telemetry.
func (m *Metrics) Emit(event framework.Event) {
	switch event.Type {
	case framework.EventRunFinish:
		m.runs.Inc()
		m.lastRun.Set(float64(event.Timestamp.Unix()))
		if ms, ok := number(event.Metadata["duration_ms"]); ok {
			m.runDuration.Observe(ms / 1000)
		}
		if lines, ok := number(event.Metadata["lines"]); ok {
			m.totalLines.Set(lines)
		}
	case framework.EventRunRejected:
		m.rejected.Inc()
	case framework.EventProjectFinish:
		if v, ok := number(event.Metadata["lines"]); ok {
			m.projectLines.WithLabelValues(event.Project).Set(v)
		}
		if v, ok := number(event.Metadata["files"]); ok {
			m.projectFiles.WithLabelValues(event.Project).Set(v)
		}
		if v, ok := number(event.Metadata["errors"]); ok {
			m.projectErrs.WithLabelValues(event.Project).Set(v)
		}
	case framework.EventFileError:
		m.fileErrors.WithLabelValues(event.Project).Inc()
	case framework.EventProjectMissing:
		m.missing.WithLabelValues(event.Project).Inc()
	}
}

// Forget drops per-project series, used when a project is removed.
func (m *Metrics) Forget(project string) {
	m.projectLines.DeleteLabelValues(project)
	m.projectFiles.DeleteLabelValues(project)
	m.projectErrs.DeleteLabelValues(project)
	m.fileErrors.DeleteLabelValues(project)
	m.missing.DeleteLabelValues(project)
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
