package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/errors"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

// GenerationService runs the generate → assign → record pipeline
type GenerationService struct {
	projects  domain.ProjectRepository
	templates domain.RoadmapTemplateRepository
	roadmaps  domain.RoadmapRepository
	tasks     domain.TaskRepository
	directory domain.EmployeeDirectory
	generator *TaskGenerator
	engine    *AssignmentEngine
	ledger    *GenerationLedger
	locks     *keyedMutex
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// GenerationDeps groups the collaborators of GenerationService
type GenerationDeps struct {
	Projects  domain.ProjectRepository
	Templates domain.RoadmapTemplateRepository
	Roadmaps  domain.RoadmapRepository
	Tasks     domain.TaskRepository
	Directory domain.EmployeeDirectory
	Generator *TaskGenerator
	Engine    *AssignmentEngine
	Ledger    *GenerationLedger
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(deps GenerationDeps, logger *logging.Logger, m *metrics.Metrics) *GenerationService {
	return &GenerationService{
		projects:  deps.Projects,
		templates: deps.Templates,
		roadmaps:  deps.Roadmaps,
		tasks:     deps.Tasks,
		directory: deps.Directory,
		generator: deps.Generator,
		engine:    deps.Engine,
		ledger:    deps.Ledger,
		locks:     newKeyedMutex(),
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate expands the roadmap's template into tasks for every unit of the
// project, assigns them and records the run. The new tasks and the record
// are stored together. Runs are serialized per
// (project, roadmap) and idempotent by task key: when every task already
// exists nothing is written and the summary is marked duplicate.
func (s *GenerationService) Generate(ctx context.Context, cmd GenerateCommand) (result *GenerationResultDTO, err error) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, "roadmap.generation.generate")
	span.SetAttributes(tracing.GenerationSpanAttributes(cmd.ProjectID, cmd.RoadmapID, string(cmd.Strategy))...)
	defer func() { tracing.EndSpan(span, err) }()

	if !cmd.Strategy.IsValid() {
		return nil, errors.ErrValidationWithFields("invalid generation request", map[string]string{
			"strategy": fmt.Sprintf("unknown strategy %q", cmd.Strategy),
		})
	}

	unlock := s.locks.Lock(cmd.ProjectID + "|" + cmd.RoadmapID)
	defer unlock()

	defer func() {
		if err != nil {
			s.metrics.RecordGeneration(string(cmd.Strategy), "failed", 0, time.Since(start))
		}
	}()

	project, roadmap, tmpl, err := s.load(ctx, cmd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	planned, err := s.generator.Generate(project, roadmap.RoadmapID, tmpl, now)
	if err != nil {
		if appErr := domainAppError(err, "cannot generate tasks"); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	existing, err := s.tasks.FindByProject(ctx, project.ProjectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load existing tasks", "projectId", project.ProjectID)
		return nil, fmt.Errorf("failed to load existing tasks: %w", err)
	}
	existingByKey := make(map[domain.TaskKey]*domain.TaskInstance, len(existing))
	for _, t := range existing {
		existingByKey[t.Key()] = t
	}

	var missing, kept []*domain.TaskInstance
	for _, t := range planned {
		if prior, ok := existingByKey[t.Key()]; ok {
			kept = append(kept, prior)
			continue
		}
		missing = append(missing, t)
	}

	if len(missing) == 0 {
		s.metrics.RecordGeneration(string(cmd.Strategy), "duplicate", 0, time.Since(start))
		s.logger.Info("Generation is a duplicate", "projectId", project.ProjectID, "roadmapId", roadmap.RoadmapID, "tasks", len(kept))
		return &GenerationResultDTO{
			Tasks: ToTaskDTOs(kept),
			Summary: GenerationSummaryDTO{
				Duplicate:       true,
				TaskCount:       len(kept),
				ExistingCount:   len(kept),
				AssignedCount:   countAssigned(kept),
				UnassignedCount: len(kept) - countAssigned(kept),
				Warnings:        []WarningDTO{},
			},
		}, nil
	}

	candidates, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	assignment, err := s.engine.Assign(ctx, missing, candidates, cmd.Strategy, domain.Day(now))
	if err != nil {
		if appErr := domainAppError(err, "invalid generation request"); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	record := domain.NewGenerationRecord(uuid.New().String(), project.ProjectID, roadmap.RoadmapID,
		cmd.Strategy, missing, assignment.Warnings, cmd.GeneratedBy, now)
	if err := s.ledger.Record(ctx, record, missing); err != nil {
		return nil, err
	}
	inserted := len(missing)

	all := append(kept, missing...)
	sortTasks(all)

	duration := time.Since(start)
	s.metrics.RecordGeneration(string(cmd.Strategy), "created", inserted, duration)
	s.logger.Event(ctx, "tasks_generated", map[string]any{
		"generationId": record.GenerationID,
		"projectId":    project.ProjectID,
		"roadmapId":    roadmap.RoadmapID,
		"strategy":     string(cmd.Strategy),
		"created":      inserted,
		"assigned":     assignment.AssignedCount,
		"unassigned":   assignment.UnassignedCount,
		"warnings":     len(assignment.Warnings),
	})
	s.logger.Performance(ctx, "generate", duration, true, map[string]any{"tasks": len(missing)})
	s.logger.Info("Tasks generated", "generationId", record.GenerationID, "projectId", project.ProjectID, "created", inserted)

	recordDTO := ToGenerationRecordDTO(record)
	return &GenerationResultDTO{
		Tasks:  ToTaskDTOs(all),
		Record: &recordDTO,
		Summary: GenerationSummaryDTO{
			TaskCount:       len(all),
			CreatedCount:    inserted,
			ExistingCount:   len(kept),
			AssignedCount:   assignment.AssignedCount,
			UnassignedCount: assignment.UnassignedCount,
			Warnings:        ToWarningDTOs(assignment.Warnings),
		},
	}, nil
}

func (s *GenerationService) load(ctx context.Context, cmd GenerateCommand) (*domain.Project, *domain.Roadmap, *domain.RoadmapTemplate, error) {
	project, err := s.projects.FindByID(ctx, cmd.ProjectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get project", "projectId", cmd.ProjectID)
		return nil, nil, nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, nil, nil, errors.ErrNotFoundWithID("project", cmd.ProjectID)
	}

	roadmap, err := s.roadmaps.FindByID(ctx, cmd.RoadmapID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get roadmap", "roadmapId", cmd.RoadmapID)
		return nil, nil, nil, fmt.Errorf("failed to get roadmap: %w", err)
	}
	if roadmap == nil {
		return nil, nil, nil, errors.ErrNotFoundWithID("roadmap", cmd.RoadmapID)
	}
	if roadmap.ProjectID != project.ProjectID {
		return nil, nil, nil, errors.ErrValidationWithFields("invalid generation request", map[string]string{
			"roadmapId": fmt.Sprintf("roadmap %s belongs to project %s", roadmap.RoadmapID, roadmap.ProjectID),
		})
	}

	tmpl, err := s.templates.FindByID(ctx, roadmap.TemplateID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get template", "templateId", roadmap.TemplateID)
		return nil, nil, nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tmpl == nil {
		return nil, nil, nil, errors.ErrNotFoundWithID("template", roadmap.TemplateID)
	}
	return project, roadmap, tmpl, nil
}

// candidates snapshots the directory with workload derived from active
// tasks. A directory failure is the one hard availability error.
func (s *GenerationService) candidates(ctx context.Context) ([]domain.AssignmentCandidate, error) {
	candidates, err := s.directory.ListActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Employee directory unavailable")
		return nil, errors.ErrServiceUnavailable("employee directory").Wrap(err)
	}

	workload, err := s.tasks.CountActiveByAssignee(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to count active tasks")
		return nil, fmt.Errorf("failed to count active tasks: %w", err)
	}

	snapshot := make([]domain.AssignmentCandidate, len(candidates))
	for i, c := range candidates {
		c.CurrentWorkload = workload[c.EmployeeID]
		snapshot[i] = c
	}
	return snapshot, nil
}

// ListProjectTasks returns the generated tasks of a project in unit/step order
func (s *GenerationService) ListProjectTasks(ctx context.Context, projectID string) ([]TaskDTO, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get project", "projectId", projectID)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, errors.ErrNotFoundWithID("project", projectID)
	}

	tasks, err := s.tasks.FindByProject(ctx, projectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list tasks", "projectId", projectID)
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	sortTasks(tasks)
	return ToTaskDTOs(tasks), nil
}

// GetGenerationStats returns ledger statistics with the recent newest runs
func (s *GenerationService) GetGenerationStats(ctx context.Context, recent int) (*GenerationStatsDTO, error) {
	return s.ledger.Stats(ctx, recent)
}

func sortTasks(tasks []*domain.TaskInstance) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].UnitIndex != tasks[j].UnitIndex {
			return tasks[i].UnitIndex < tasks[j].UnitIndex
		}
		return tasks[i].StepIndex < tasks[j].StepIndex
	})
}

func countAssigned(tasks []*domain.TaskInstance) int {
	n := 0
	for _, t := range tasks {
		if t.AssigneeID != "" {
			n++
		}
	}
	return n
}
