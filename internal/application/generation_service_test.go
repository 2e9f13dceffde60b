package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/roadmap-service/internal/domain"
	sharedErrors "github.com/wms-platform/roadmap-service/pkg/errors"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

type generationFixture struct {
	svc       *GenerationService
	tasks     *fakeTaskRepo
	ledger    *fakeGenerationRepo
	directory *stubDirectory
	oracle    *fakeOracle
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	tmpl := buildTemplate(t)
	project := &domain.Project{ProjectID: "PRJ-1", Name: "Cabinets", Quantity: 2, StartDate: monday, RoadmapID: "RM-1"}
	roadmap, err := domain.NewRoadmap("RM-1", project, tmpl, domain.InstantiateOptions{}, monday)
	require.NoError(t, err)

	tasks := newFakeTaskRepo()
	f := &generationFixture{
		tasks:  tasks,
		ledger: &fakeGenerationRepo{tasks: tasks},
		directory: &stubDirectory{candidates: []domain.AssignmentCandidate{
			candidate("EMP-2", "painter"),
			candidate("EMP-1", "machinist"),
		}},
		oracle: &fakeOracle{statuses: map[string]domain.AvailabilityStatus{}},
	}

	generator, err := NewTaskGenerator(domain.DefaultPriorityBands())
	require.NoError(t, err)

	logger := logging.NewNop()
	f.svc = NewGenerationService(GenerationDeps{
		Projects: &stubProjectRepo{FindByIDFn: func(_ context.Context, id string) (*domain.Project, error) {
			if id == project.ProjectID {
				return project, nil
			}
			return nil, nil
		}},
		Templates: &stubTemplateRepo{FindByIDFn: func(_ context.Context, id string) (*domain.RoadmapTemplate, error) {
			if id == tmpl.TemplateID {
				return tmpl, nil
			}
			return nil, nil
		}},
		Roadmaps: &stubRoadmapRepo{FindByIDFn: func(_ context.Context, id string) (*domain.Roadmap, error) {
			if id == roadmap.RoadmapID {
				return roadmap, nil
			}
			return nil, nil
		}},
		Tasks:     f.tasks,
		Directory: f.directory,
		Generator: generator,
		Engine:    newTestEngine(f.oracle, time.Second),
		Ledger:    NewGenerationLedger(f.ledger, logger),
	}, logger, nil)
	f.svc.now = func() time.Time { return monday.Add(8 * time.Hour) }
	return f
}

func generate(f *generationFixture, strategy domain.StrategyType) (*GenerationResultDTO, error) {
	return f.svc.Generate(context.Background(), GenerateCommand{
		ProjectID:   "PRJ-1",
		RoadmapID:   "RM-1",
		Strategy:    strategy,
		GeneratedBy: "MGR-1",
	})
}

func TestGenerationService_Generate(t *testing.T) {
	f := newGenerationFixture(t)

	result, err := generate(f, domain.StrategyRoundRobin)
	require.NoError(t, err)

	require.Len(t, result.Tasks, 4)
	assert.False(t, result.Summary.Duplicate)
	assert.Equal(t, 4, result.Summary.CreatedCount)
	assert.Equal(t, 4, result.Summary.AssignedCount)
	assert.Equal(t, []string{"EMP-1", "EMP-2", "EMP-1", "EMP-2"}, []string{
		result.Tasks[0].AssigneeID, result.Tasks[1].AssigneeID, result.Tasks[2].AssigneeID, result.Tasks[3].AssigneeID,
	})

	require.NotNil(t, result.Record)
	assert.Equal(t, 4, result.Record.TaskCount)
	assert.Equal(t, "MGR-1", result.Record.GeneratedBy)
	require.Len(t, f.ledger.records, 1)
	assert.Empty(t, f.ledger.records[0].DomainEvents, "events handed to the repository")
}

func TestGenerationService_DuplicateRunIsNoOp(t *testing.T) {
	f := newGenerationFixture(t)

	_, err := generate(f, domain.StrategyRoundRobin)
	require.NoError(t, err)

	again, err := generate(f, domain.StrategyWorkloadBased)
	require.NoError(t, err)

	assert.True(t, again.Summary.Duplicate)
	assert.Nil(t, again.Record)
	assert.Len(t, again.Tasks, 4)
	assert.Equal(t, 4, again.Summary.ExistingCount)
	assert.Len(t, f.ledger.records, 1, "no record for a duplicate run")
}

func TestGenerationService_PartialRunCreatesMissingOnly(t *testing.T) {
	f := newGenerationFixture(t)
	require.NoError(t, f.tasks.insert(&domain.TaskInstance{
		TaskID: "PRJ-1-U0-S0", ProjectID: "PRJ-1", UnitIndex: 0, StepIndex: 0,
		AssigneeID: "EMP-1", Status: domain.TaskInProgress,
	}))

	result, err := generate(f, domain.StrategyWorkloadBased)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.CreatedCount)
	assert.Equal(t, 1, result.Summary.ExistingCount)
	assert.Equal(t, 4, result.Summary.TaskCount)
	assert.Equal(t, 3, result.Record.TaskCount)
	assert.NotContains(t, result.Record.TaskIDs, "PRJ-1-U0-S0")
	// EMP-1 already carries one active task, so EMP-2 goes first
	assert.Equal(t, "EMP-2", result.Tasks[1].AssigneeID)
}

func TestGenerationService_FailedRecordLeavesNoTasks(t *testing.T) {
	f := newGenerationFixture(t)
	f.ledger.saveErr = errors.New("write conflict")

	_, err := generate(f, domain.StrategyRoundRobin)
	require.Error(t, err)
	assert.Empty(t, f.tasks.tasks, "tasks are stored only with their record")
	assert.Empty(t, f.ledger.records)

	f.ledger.saveErr = nil
	retry, err := generate(f, domain.StrategyRoundRobin)
	require.NoError(t, err)
	assert.False(t, retry.Summary.Duplicate)
	assert.Equal(t, 4, retry.Summary.CreatedCount)
	require.NotNil(t, retry.Record)
	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, 4, f.ledger.records[0].TaskCount)

	stats, err := f.svc.GetGenerationStats(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalTasksGenerated)
}

func TestGenerationService_ConcurrentWriterConflicts(t *testing.T) {
	f := newGenerationFixture(t)
	f.ledger.saveErr = domain.ErrTaskExists

	_, err := generate(f, domain.StrategyRoundRobin)
	assertAppError(t, err, sharedErrors.CodeConflict)
}

func TestGenerationService_NoAvailableCandidate(t *testing.T) {
	f := newGenerationFixture(t)
	f.oracle.statuses["EMP-1"] = domain.HalfDay
	f.oracle.statuses["EMP-2"] = domain.Unavailable

	result, err := generate(f, domain.StrategyRoleBased)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Summary.UnassignedCount)
	require.Len(t, result.Summary.Warnings, 1)
	assert.Equal(t, domain.WarningNoAvailableCandidate, result.Summary.Warnings[0].Code)
	for _, task := range result.Tasks {
		assert.Equal(t, "UNASSIGNED", task.Status)
	}
}

func TestGenerationService_Errors(t *testing.T) {
	f := newGenerationFixture(t)

	_, err := generate(f, "FASTEST")
	appErr := assertAppError(t, err, sharedErrors.CodeValidationError)
	assert.Contains(t, appErr.Details, "strategy")

	_, err = f.svc.Generate(context.Background(), GenerateCommand{ProjectID: "PRJ-404", RoadmapID: "RM-1", Strategy: domain.StrategyRoundRobin})
	assertAppError(t, err, sharedErrors.CodeNotFound)

	f.directory.err = errors.New("directory timeout")
	_, err = generate(f, domain.StrategyRoundRobin)
	assertAppError(t, err, sharedErrors.CodeServiceUnavailable)
	assert.Empty(t, f.tasks.tasks, "nothing written when the directory fails")
}

func TestGenerationService_ListProjectTasks(t *testing.T) {
	f := newGenerationFixture(t)
	_, err := generate(f, domain.StrategyRoundRobin)
	require.NoError(t, err)

	tasks, err := f.svc.ListProjectTasks(context.Background(), "PRJ-1")
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	assert.Equal(t, "PRJ-1-U0-S0", tasks[0].TaskID)
	assert.Equal(t, "PRJ-1-U1-S1", tasks[3].TaskID)

	stats, err := f.svc.GetGenerationStats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalGenerations)
	assert.Equal(t, 4.0, stats.AverageTasksPerGeneration)
}
