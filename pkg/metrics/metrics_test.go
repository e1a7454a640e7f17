package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/gomapper/pkg/metrics"
	"github.com/sandrolain/gomapper/pkg/types"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ObservePass("forward", metrics.OutcomeOK, 2*time.Millisecond)
	c.ObservePass("forward", metrics.OutcomeOK, time.Millisecond)
	c.ObserveError(types.Errorf(types.ErrCannotCoerce, "bad"))
	c.ObserveError(errors.New("plain"))
	c.ObserveStage("WHERE", 10, 4)

	assert.Equal(t, 2.0, counterValue(t, reg, "gomapper_passes_total", map[string]string{"direction": "forward", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gomapper_errors_total", map[string]string{"code": "T0301"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gomapper_errors_total", map[string]string{"code": "unknown"}))
	assert.Equal(t, 6.0, counterValue(t, reg, "gomapper_stage_dropped_rows_total", map[string]string{"stage": "WHERE"}))
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.ObservePass("forward", metrics.OutcomeOK, time.Second)
		c.ObserveError(errors.New("x"))
		c.ObserveStage("LIMIT", 1, 0)
	})
}
