package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordGeneration(t *testing.T) {
	m := New(DefaultConfig("roadmap-service"))

	m.RecordGeneration("ROUND_ROBIN", "created", 6, 20*time.Millisecond)
	m.RecordGeneration("ROUND_ROBIN", "duplicate", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("roadmap-service", "ROUND_ROBIN", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("roadmap-service", "ROUND_ROBIN", "duplicate")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.TasksGenerated.WithLabelValues("roadmap-service", "ROUND_ROBIN")))
}

func TestRecordAssignments(t *testing.T) {
	m := New(DefaultConfig("roadmap-service"))

	m.RecordAssignments("ROLE_BASED", 3, 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.TaskAssignments.WithLabelValues("roadmap-service", "ROLE_BASED", "assigned")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TaskAssignments.WithLabelValues("roadmap-service", "ROLE_BASED", "unassigned")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordStageTransition("approve", true)
		m.RecordAvailabilityLookup("error")
		m.SetStagesAtRisk(3)
	})
}
