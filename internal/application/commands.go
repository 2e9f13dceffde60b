package application

import (
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

// CreateTemplateCommand creates or replaces a roadmap template
type CreateTemplateCommand struct {
	TemplateID string
	Name       string
	Category   string
	Steps      []domain.StepDefinition
}

// CreateProjectCommand creates a project
type CreateProjectCommand struct {
	ProjectID           string
	Name                string
	Quantity            int
	StartDate           time.Time
	NamingPattern       string
	DescriptionTemplate string
}

// InstantiateRoadmapCommand creates a roadmap for a project from a template
type InstantiateRoadmapCommand struct {
	ProjectID      string
	TemplateID     string
	Name           string
	HoldFirstStage bool
	ActorID        string
}

// TransitionCommand applies an action to a stage. When Actor is set the
// service checks that the actor may perform the action.
type TransitionCommand struct {
	StageID    string
	Action     domain.StageAction
	Actor      *domain.Actor
	Reason     string
	EmployeeID string
}

// CanActQuery asks whether an actor may perform an action on a stage
type CanActQuery struct {
	StageID string
	Actor   domain.Actor
	Action  domain.StageAction
}

// GenerateCommand runs task generation and assignment for a roadmap
type GenerateCommand struct {
	ProjectID   string
	RoadmapID   string
	Strategy    domain.StrategyType
	GeneratedBy string
}

// UpsertEmployeeCommand creates or updates a directory entry
type UpsertEmployeeCommand struct {
	EmployeeID string
	Name       string
	Role       string
	Active     bool
}

// RecordAvailabilityCommand records an employee's status on a day
type RecordAvailabilityCommand struct {
	EmployeeID string
	Day        string
	Status     string
}
