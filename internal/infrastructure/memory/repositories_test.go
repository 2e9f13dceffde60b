package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

var start = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newRoadmap(t *testing.T) *domain.Roadmap {
	t.Helper()
	tmpl, err := domain.NewRoadmapTemplate("TPL", "tmpl", "", []domain.StepDefinition{
		{Title: "a", RequiredRole: "r", SLAHours: 8},
		{Title: "b", RequiredRole: "r", SLAHours: 8},
	}, start)
	require.NoError(t, err)
	project, err := domain.NewProject("PRJ", "p", 1, start, "", "", start)
	require.NoError(t, err)
	roadmap, err := domain.NewRoadmap("RM", project, tmpl, domain.InstantiateOptions{}, start)
	require.NoError(t, err)
	return roadmap
}

func TestRoadmapRepository_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewRoadmapRepository()

	roadmap := newRoadmap(t)
	require.NoError(t, repo.Save(ctx, roadmap))
	assert.Equal(t, int64(1), roadmap.Version)
	assert.NotEmpty(t, repo.Published)
	assert.ErrorIs(t, repo.Save(ctx, newRoadmap(t)), domain.ErrVersionConflict, "second insert")

	a, err := repo.FindByStageID(ctx, domain.StageID("RM", 1))
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, "RM")
	require.NoError(t, err)

	_, err = a.Transition(domain.StageID("RM", 0), domain.StageCommand{Action: domain.ActionStart}, start)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, a))

	_, err = b.Transition(domain.StageID("RM", 0), domain.StageCommand{Action: domain.ActionStart}, start)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, b), domain.ErrVersionConflict)

	active, err := repo.FindWithStageStatus(ctx, domain.StageInProgress)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	none, err := repo.FindWithStageStatus(ctx, domain.StageDone)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGenerationRepository_SaveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	tasks := NewTaskRepository()
	repo := NewGenerationRepository(tasks)

	task := func(unit, step int, status domain.TaskStatus) *domain.TaskInstance {
		return &domain.TaskInstance{ProjectID: "PRJ", UnitIndex: unit, StepIndex: step, AssigneeID: "EMP-1", Status: status}
	}

	first := []*domain.TaskInstance{task(0, 0, domain.TaskPlanned), task(0, 1, domain.TaskCompleted)}
	record := domain.NewGenerationRecord("GEN-1", "PRJ", "RM", domain.StrategyRoundRobin, first, nil, "MGR", start)
	require.NoError(t, repo.Save(ctx, record, first))

	second := []*domain.TaskInstance{task(1, 0, domain.TaskInProgress), task(0, 0, domain.TaskPlanned)}
	clash := domain.NewGenerationRecord("GEN-2", "PRJ", "RM", domain.StrategyRoundRobin, second, nil, "MGR", start)
	assert.ErrorIs(t, repo.Save(ctx, clash, second), domain.ErrTaskExists)

	stored, err := tasks.FindByProject(ctx, "PRJ")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.TotalGenerations)

	counts, err := tasks.CountActiveByAssignee(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"EMP-1": 1}, counts)
}

func TestTemplateRepository_Referenced(t *testing.T) {
	ctx := context.Background()
	tmpl, err := domain.NewRoadmapTemplate("TPL", "tmpl", "", []domain.StepDefinition{{Title: "a"}}, start)
	require.NoError(t, err)
	repo := NewTemplateRepository(tmpl)

	require.NoError(t, repo.MarkReferenced(ctx, "TPL"))
	assert.ErrorIs(t, repo.Save(ctx, tmpl), domain.ErrTemplateReferenced)
	assert.ErrorIs(t, repo.MarkReferenced(ctx, "nope"), ErrTemplateNotFound)
}

func TestAttendanceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAttendanceRepository()

	status, err := repo.StatusOf(ctx, "EMP-1", start)
	require.NoError(t, err)
	assert.Equal(t, domain.Available, status)

	require.NoError(t, repo.Record(ctx, &domain.AttendanceRecord{EmployeeID: "EMP-1", Day: "2026-10-19", Status: domain.Unavailable}))
	status, err = repo.StatusOf(ctx, "EMP-1", start.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.Unavailable, status)
}
