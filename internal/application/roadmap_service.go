package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/errors"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/tracing"
)

// RoadmapService handles templates, projects, roadmap instances and stage
// transitions
type RoadmapService struct {
	templates domain.RoadmapTemplateRepository
	projects  domain.ProjectRepository
	roadmaps  domain.RoadmapRepository
	locks     *keyedMutex
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewRoadmapService creates a new RoadmapService
func NewRoadmapService(
	templates domain.RoadmapTemplateRepository,
	projects domain.ProjectRepository,
	roadmaps domain.RoadmapRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *RoadmapService {
	return &RoadmapService{
		templates: templates,
		projects:  projects,
		roadmaps:  roadmaps,
		locks:     newKeyedMutex(),
		logger:    logger,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateTemplate creates a template or replaces one no roadmap references yet
func (s *RoadmapService) CreateTemplate(ctx context.Context, cmd CreateTemplateCommand) (*TemplateDTO, error) {
	now := s.now()
	tmpl, err := domain.NewRoadmapTemplate(cmd.TemplateID, cmd.Name, cmd.Category, cmd.Steps, now)
	if err != nil {
		return nil, domainAppError(err, "invalid template")
	}

	existing, err := s.templates.FindByID(ctx, tmpl.TemplateID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get template", "templateId", tmpl.TemplateID)
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if existing != nil {
		if existing.Referenced {
			return nil, errors.ErrConflict(domain.ErrTemplateReferenced.Error()).WithDetail("templateId", tmpl.TemplateID)
		}
		tmpl.CreatedAt = existing.CreatedAt
	}

	if err := s.templates.Save(ctx, tmpl); err != nil {
		if appErr := domainAppError(err, "invalid template"); appErr != nil {
			return nil, appErr
		}
		s.logger.WithError(err).Error("Failed to save template", "templateId", tmpl.TemplateID)
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Saved template", "templateId", tmpl.TemplateID, "steps", len(tmpl.Steps), "replaced", existing != nil)
	return ToTemplateDTO(tmpl), nil
}

// GetTemplate retrieves a template by ID
func (s *RoadmapService) GetTemplate(ctx context.Context, templateID string) (*TemplateDTO, error) {
	tmpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get template", "templateId", templateID)
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tmpl == nil {
		return nil, errors.ErrNotFoundWithID("template", templateID)
	}
	return ToTemplateDTO(tmpl), nil
}

// ListTemplates returns every template
func (s *RoadmapService) ListTemplates(ctx context.Context) ([]TemplateDTO, error) {
	templates, err := s.templates.FindAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list templates")
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	out := make([]TemplateDTO, 0, len(templates))
	for _, t := range templates {
		out = append(out, *ToTemplateDTO(t))
	}
	return out, nil
}

// CreateProject creates a project
func (s *RoadmapService) CreateProject(ctx context.Context, cmd CreateProjectCommand) (*ProjectDTO, error) {
	project, err := domain.NewProject(cmd.ProjectID, cmd.Name, cmd.Quantity, cmd.StartDate, cmd.NamingPattern, cmd.DescriptionTemplate, s.now())
	if err != nil {
		return nil, domainAppError(err, "invalid project")
	}

	existing, err := s.projects.FindByID(ctx, project.ProjectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get project", "projectId", project.ProjectID)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrConflict("project already exists").WithDetail("projectId", project.ProjectID)
	}

	if err := s.projects.Save(ctx, project); err != nil {
		s.logger.WithError(err).Error("Failed to save project", "projectId", project.ProjectID)
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	s.logger.Info("Created project", "projectId", project.ProjectID, "quantity", project.Quantity)
	return ToProjectDTO(project), nil
}

// GetProject retrieves a project by ID
func (s *RoadmapService) GetProject(ctx context.Context, projectID string) (*ProjectDTO, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get project", "projectId", projectID)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, errors.ErrNotFoundWithID("project", projectID)
	}
	return ToProjectDTO(project), nil
}

// InstantiateRoadmap creates the roadmap of a project from a template and
// freezes the template.
func (s *RoadmapService) InstantiateRoadmap(ctx context.Context, cmd InstantiateRoadmapCommand) (*RoadmapDTO, error) {
	unlock := s.locks.Lock("project:" + cmd.ProjectID)
	defer unlock()

	project, err := s.projects.FindByID(ctx, cmd.ProjectID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get project", "projectId", cmd.ProjectID)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, errors.ErrNotFoundWithID("project", cmd.ProjectID)
	}
	if project.RoadmapID != "" {
		s.referenceTemplateOf(ctx, project.RoadmapID)
		return nil, errors.ErrConflict("project already has a roadmap").WithDetail("roadmapId", project.RoadmapID)
	}

	tmpl, err := s.templates.FindByID(ctx, cmd.TemplateID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get template", "templateId", cmd.TemplateID)
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tmpl == nil {
		return nil, errors.ErrNotFoundWithID("template", cmd.TemplateID)
	}

	now := s.now()
	roadmap, err := domain.NewRoadmap("RM-"+uuid.New().String(), project, tmpl, domain.InstantiateOptions{
		Name:           cmd.Name,
		HoldFirstStage: cmd.HoldFirstStage,
	}, now)
	if err != nil {
		return nil, domainAppError(err, "invalid roadmap")
	}

	if err := s.roadmaps.Save(ctx, roadmap); err != nil {
		s.logger.WithError(err).Error("Failed to save roadmap", "roadmapId", roadmap.RoadmapID)
		return nil, fmt.Errorf("failed to save roadmap: %w", err)
	}

	project.AttachRoadmap(roadmap.RoadmapID, now)
	if err := s.projects.Save(ctx, project); err != nil {
		s.logger.WithError(err).Error("Failed to attach roadmap", "projectId", project.ProjectID)
		return nil, fmt.Errorf("failed to attach roadmap to project: %w", err)
	}

	// marked last so a failed save never freezes a template; a retry that
	// hits the conflict above marks it again
	if err := s.templates.MarkReferenced(ctx, tmpl.TemplateID); err != nil {
		s.logger.WithError(err).Error("Failed to mark template referenced", "templateId", tmpl.TemplateID)
		return nil, fmt.Errorf("failed to mark template referenced: %w", err)
	}

	s.logger.Audit(ctx, "instantiate", "roadmap", roadmap.RoadmapID, cmd.ActorID, map[string]any{
		"projectId":  project.ProjectID,
		"templateId": tmpl.TemplateID,
		"stages":     len(roadmap.Stages),
	})
	s.logger.Info("Instantiated roadmap", "roadmapId", roadmap.RoadmapID, "projectId", project.ProjectID)
	return ToRoadmapDTO(roadmap), nil
}

// referenceTemplateOf marks the template of an existing roadmap referenced.
// Failures are only logged.
func (s *RoadmapService) referenceTemplateOf(ctx context.Context, roadmapID string) {
	roadmap, err := s.roadmaps.FindByID(ctx, roadmapID)
	if err != nil || roadmap == nil {
		return
	}
	if err := s.templates.MarkReferenced(ctx, roadmap.TemplateID); err != nil {
		s.logger.WithError(err).Warn("Failed to mark template referenced", "templateId", roadmap.TemplateID)
	}
}

// GetRoadmapWithMetrics returns the roadmap with total SLA and progress
func (s *RoadmapService) GetRoadmapWithMetrics(ctx context.Context, roadmapID string) (*RoadmapDTO, error) {
	roadmap, err := s.roadmaps.FindByID(ctx, roadmapID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get roadmap", "roadmapId", roadmapID)
		return nil, fmt.Errorf("failed to get roadmap: %w", err)
	}
	if roadmap == nil {
		return nil, errors.ErrNotFoundWithID("roadmap", roadmapID)
	}
	return ToRoadmapDTO(roadmap), nil
}

// Transition applies a stage action. Transitions on one stage are
// serialized; concurrent writes to the same roadmap are caught by the
// repository's version check and surface as a conflict.
func (s *RoadmapService) Transition(ctx context.Context, cmd TransitionCommand) (result *StageDTO, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "roadmap.stage.transition")
	defer func() { tracing.EndSpan(span, err) }()
	defer func() { s.metrics.RecordStageTransition(string(cmd.Action), err == nil) }()

	unlock := s.locks.Lock(cmd.StageID)
	defer unlock()

	roadmap, err := s.roadmaps.FindByStageID(ctx, cmd.StageID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get roadmap", "stageId", cmd.StageID)
		return nil, fmt.Errorf("failed to get roadmap: %w", err)
	}
	if roadmap == nil {
		return nil, errors.ErrNotFoundWithID("stage", cmd.StageID)
	}
	span.SetAttributes(tracing.StageSpanAttributes(roadmap.RoadmapID, cmd.StageID, string(cmd.Action))...)

	stage, _ := roadmap.Stage(cmd.StageID)
	from := stage.Status
	actorID := ""
	if cmd.Actor != nil {
		actorID = cmd.Actor.ID
		if !stage.Permits(*cmd.Actor, cmd.Action) {
			return nil, errors.ErrForbidden(fmt.Sprintf("%s: %s on %s", domain.ErrNotPermitted, cmd.Action, cmd.StageID)).
				WithDetail("actorId", actorID)
		}
	}

	stage, err = roadmap.Transition(cmd.StageID, domain.StageCommand{
		Action:     cmd.Action,
		ActorID:    actorID,
		Reason:     cmd.Reason,
		EmployeeID: cmd.EmployeeID,
	}, s.now())
	if err != nil {
		s.logger.Info("Rejected stage action", "stageId", cmd.StageID, "action", cmd.Action, "status", from, "reason", err.Error())
		if appErr := domainAppError(err, "invalid stage command"); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	if err := s.roadmaps.Save(ctx, roadmap); err != nil {
		if appErr := domainAppError(err, "invalid roadmap"); appErr != nil {
			return nil, appErr
		}
		s.logger.WithError(err).Error("Failed to save roadmap", "roadmapId", roadmap.RoadmapID)
		return nil, fmt.Errorf("failed to save roadmap: %w", err)
	}

	s.logger.Audit(ctx, string(cmd.Action), "stage", stage.StageID, actorID, map[string]any{
		"roadmapId": roadmap.RoadmapID,
		"from":      string(from),
		"to":        string(stage.Status),
	})
	s.logger.Info("Stage transitioned", "stageId", stage.StageID, "action", cmd.Action, "from", from, "to", stage.Status)

	dto := ToStageDTO(stage)
	return &dto, nil
}

// CanAct reports whether the actor may perform the action on the stage now
func (s *RoadmapService) CanAct(ctx context.Context, query CanActQuery) (*CanActDTO, error) {
	roadmap, err := s.roadmaps.FindByStageID(ctx, query.StageID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get roadmap", "stageId", query.StageID)
		return nil, fmt.Errorf("failed to get roadmap: %w", err)
	}
	if roadmap == nil {
		return nil, errors.ErrNotFoundWithID("stage", query.StageID)
	}

	return &CanActDTO{
		StageID: query.StageID,
		ActorID: query.Actor.ID,
		Action:  string(query.Action),
		Allowed: roadmap.CanAct(query.StageID, query.Actor, query.Action),
	}, nil
}
