package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWorkingDays(t *testing.T) {
	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	friday := monday.AddDate(0, 0, 4)
	saturday := monday.AddDate(0, 0, 5)

	tests := []struct {
		name  string
		start time.Time
		days  int
		want  time.Time
	}{
		{"zero days", monday, 0, monday},
		{"within week", monday, 2, monday.AddDate(0, 0, 2)},
		{"over weekend", friday, 1, monday.AddDate(0, 0, 7)},
		{"full week", monday, 5, monday.AddDate(0, 0, 7)},
		{"from saturday", saturday, 1, monday.AddDate(0, 0, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddWorkingDays(tt.start, tt.days))
		})
	}

	assert.Equal(t, monday.AddDate(0, 0, 7), NextWorkingDay(saturday))
	assert.Equal(t, friday, NextWorkingDay(friday))
}

func TestWorkingDaysForSLA(t *testing.T) {
	assert.Equal(t, 0, WorkingDaysForSLA(0))
	assert.Equal(t, 0, WorkingDaysForSLA(-4))
	assert.Equal(t, 1, WorkingDaysForSLA(1))
	assert.Equal(t, 1, WorkingDaysForSLA(8))
	assert.Equal(t, 2, WorkingDaysForSLA(16))
	assert.Equal(t, 3, WorkingDaysForSLA(16.5))
}

func TestPriorityBands(t *testing.T) {
	bands := DefaultPriorityBands()
	want := []Priority{PriorityCritical, PriorityHigh, PriorityHigh, PriorityMedium, PriorityMedium, PriorityLow, PriorityLow}
	for i, p := range want {
		assert.Equal(t, p, bands.For(i), "step %d", i)
	}

	parsed, err := ParsePriorityBands("1, 3, 6")
	require.NoError(t, err)
	assert.Equal(t, PriorityBands{CriticalMax: 1, HighMax: 3, MediumMax: 6}, parsed)

	_, err = ParsePriorityBands("4,2,6")
	assert.Error(t, err)
	_, err = ParsePriorityBands("0,2")
	assert.Error(t, err)
	_, err = ParsePriorityBands("a,b,c")
	assert.Error(t, err)
}

func TestRoadmapTemplate_Validate(t *testing.T) {
	_, err := NewRoadmapTemplate("TPL-1", "Build", "", nil, testNow)
	fields, ok := ValidationFields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "steps")

	_, err = NewRoadmapTemplate("", "", "", []StepDefinition{
		{Title: "Design", SLAHours: 8},
		{Title: "", SLAHours: -1, Dependencies: []int{1}},
	}, testNow)
	fields, ok = ValidationFields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "templateId")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "steps[1].title")
	assert.Contains(t, fields, "steps[1].slaUnitsHours")
	assert.Contains(t, fields, "steps[1].dependencies")

	tmpl, err := NewRoadmapTemplate("TPL-1", "Build", "", []StepDefinition{
		{Title: "Design", SLAHours: 8, Index: 7},
		{Title: "Build", SLAHours: 16, Dependencies: []int{0}},
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Steps[1].Index)
	assert.Equal(t, 24.0, tmpl.TotalSLAHours())
}

func TestNewProject_Validate(t *testing.T) {
	_, err := NewProject("", "x", 0, time.Time{}, "", "", testNow)
	fields, ok := ValidationFields(err)
	require.True(t, ok)
	assert.Equal(t, []string{"projectId", "quantity", "startDate"}, err.(ValidationErrors).FieldNames())
	assert.Len(t, fields, 3)

	_, err = NewProject("PRJ-1", "x", MaxProjectQuantity+1, testNow, "", "", testNow)
	fields, ok = ValidationFields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "quantity")

	p, err := NewProject("PRJ-1", "x", MaxProjectQuantity, testNow, "", "", testNow)
	require.NoError(t, err)
	assert.Equal(t, MaxProjectQuantity, p.Quantity)
}

func TestParseAttendanceStatus(t *testing.T) {
	tests := map[string]AvailabilityStatus{
		"present":  Available,
		"PRESENT":  Available,
		"half_day": HalfDay,
		"Half-Day": HalfDay,
		"absent":   Unavailable,
		"leave":    Unavailable,
		"":         Unavailable,
		"unknown":  Unavailable,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseAttendanceStatus(raw), raw)
	}
	assert.False(t, HalfDay.Assignable())
	assert.True(t, Available.Assignable())
}

func TestNewGenerationRecord(t *testing.T) {
	tasks := []*TaskInstance{
		{TaskID: "PRJ-1-U0-S0", AssigneeID: "EMP-1"},
		{TaskID: "PRJ-1-U0-S1"},
	}
	record := NewGenerationRecord("GEN-1", "PRJ-1", "RM-1", StrategyRoundRobin, tasks, nil, "MGR-1", testNow)

	assert.Equal(t, 2, record.TaskCount)
	assert.Equal(t, 1, record.AssignedCount)
	assert.Equal(t, 1, record.UnassignedCount)
	assert.Equal(t, []string{"PRJ-1-U0-S0", "PRJ-1-U0-S1"}, record.TaskIDs)
	require.Len(t, record.DomainEvents, 1)
	assert.Equal(t, "roadmap.generation.completed", record.DomainEvents[0].EventType())
}

func TestTaskKey(t *testing.T) {
	key := TaskKey{ProjectID: "PRJ-9", UnitIndex: 2, StepIndex: 3}
	assert.Equal(t, "PRJ-9-U2-S3", key.ID())
	assert.True(t, TaskPlanned.IsActive())
	assert.True(t, TaskInProgress.IsActive())
	assert.False(t, TaskUnassigned.IsActive())
	assert.False(t, TaskCompleted.IsActive())
}
