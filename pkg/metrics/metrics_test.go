package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("clinic", reg)

	m.Transition("appointment", "confirm", "ok")
	m.Transition("appointment", "confirm", "ok")
	m.BookingConflicts.Inc()

	assert.Equal(t, float64(2), counterValue(t, m.WorkflowTransitions.WithLabelValues("appointment", "confirm", "ok")))
	assert.Equal(t, float64(1), counterValue(t, m.BookingConflicts))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestUnregisteredMetricsCanBeCreatedTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("clinic", nil)
		NewMetrics("clinic", nil)
	})
}

func TestNilMetricsTransition(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Transition("home_visit", "assign", "ok") })
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}
