// Package metrics exposes Prometheus metrics for pipeline runs, model
// calls, guardrail verdicts, and review outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config controls metric registration.
type Config struct {
	// Enabled toggles metric recording. A disabled collector is a no-op.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "copyforge".
	Namespace string `yaml:"namespace"`
}

// Collector registers and records all pipeline metrics. It implements the
// pipeline's Recorder interface.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	nodeSteps      *prometheus.CounterVec
	modelCallSecs  *prometheus.HistogramVec
	modelTokens    *prometheus.HistogramVec
	guardrailTotal *prometheus.CounterVec
	reviewIssues   prometheus.Histogram
}

// NewCollector creates a collector registered against registry. A nil
// registry gets a fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "copyforge"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal status.",
		}, []string{"status"}),
		nodeSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "node_steps_total",
			Help:      "Graph node visits by node name.",
		}, []string{"node"}),
		modelCallSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Model call wall time by stage and model.",
			// LLM latencies run from sub-second to tens of seconds.
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"stage", "model"}),
		modelTokens: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "model_call_tokens",
			Help:      "Total tokens per model call by stage.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000},
		}, []string{"stage"}),
		guardrailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "guardrail_verdicts_total",
			Help:      "Guardrail check verdicts by check name and status.",
		}, []string{"check", "status"}),
		reviewIssues: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "review_issues",
			Help:      "Issues found per review attempt.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20},
		}),
	}

	registry.MustRegister(
		c.runsTotal,
		c.nodeSteps,
		c.modelCallSecs,
		c.modelTokens,
		c.guardrailTotal,
		c.reviewIssues,
	)
	return c
}

// RecordRunFinished counts a run reaching a terminal status.
func (c *Collector) RecordRunFinished(status string) {
	if !c.config.Enabled {
		return
	}
	c.runsTotal.WithLabelValues(status).Inc()
}

// RecordNodeStep counts one graph node visit.
func (c *Collector) RecordNodeStep(node string) {
	if !c.config.Enabled {
		return
	}
	c.nodeSteps.WithLabelValues(node).Inc()
}

// RecordModelCall observes one model call's duration and token usage.
func (c *Collector) RecordModelCall(stage, model string, duration time.Duration, totalTokens int) {
	if !c.config.Enabled {
		return
	}
	c.modelCallSecs.WithLabelValues(stage, model).Observe(duration.Seconds())
	c.modelTokens.WithLabelValues(stage).Observe(float64(totalTokens))
}

// RecordGuardrailVerdict counts one guardrail check outcome.
func (c *Collector) RecordGuardrailVerdict(check, status string) {
	if !c.config.Enabled {
		return
	}
	c.guardrailTotal.WithLabelValues(check, status).Inc()
}

// RecordReviewIssues observes the issue count of one review attempt.
func (c *Collector) RecordReviewIssues(count int) {
	if !c.config.Enabled {
		return
	}
	c.reviewIssues.Observe(float64(count))
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
