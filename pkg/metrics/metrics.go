// Package metrics exposes Prometheus collectors for mapping passes.
//
// A nil *Collector is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sandrolain/gomapper/pkg/types"
)

const namespace = "gomapper"

// Collector groups the mapper collectors.
type Collector struct {
	passes    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	stageRows *prometheus.HistogramVec
	dropped   *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Mapping passes by direction and outcome.",
		}, []string{"direction", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of mapping passes.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14), // 50µs to ~400ms
		}, []string{"direction"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors raised or collected during passes, by code.",
		}, []string{"code"}),
		stageRows: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_output_rows",
			Help:      "Rows left after each operator stage.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"stage"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_dropped_rows_total",
			Help:      "Rows removed by operator stages.",
		}, []string{"stage"}),
	}
}

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
)

// ObservePass records a finished pass.
func (c *Collector) ObservePass(direction, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.passes.WithLabelValues(direction, outcome).Inc()
	c.duration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// ObserveError counts err under its code, or "unknown".
func (c *Collector) ObserveError(err error) {
	if c == nil || err == nil {
		return
	}
	code := string(types.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	c.errors.WithLabelValues(code).Inc()
}

// ObserveStage records the row counts around one operator stage.
func (c *Collector) ObserveStage(stage string, in, out int) {
	if c == nil {
		return
	}
	c.stageRows.WithLabelValues(stage).Observe(float64(out))
	if in > out {
		c.dropped.WithLabelValues(stage).Add(float64(in - out))
	}
}
