package domain

import (
	"context"
	"time"
)

// Find methods return (nil, nil) when nothing matches.

// RoadmapTemplateRepository defines the interface for template persistence
type RoadmapTemplateRepository interface {
	// Save inserts or replaces a template; it fails with
	// ErrTemplateReferenced when the stored template is referenced.
	Save(ctx context.Context, template *RoadmapTemplate) error
	FindByID(ctx context.Context, templateID string) (*RoadmapTemplate, error)
	FindAll(ctx context.Context) ([]*RoadmapTemplate, error)
	MarkReferenced(ctx context.Context, templateID string) error
}

// ProjectRepository defines the interface for project persistence
type ProjectRepository interface {
	Save(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, projectID string) (*Project, error)
}

// RoadmapRepository defines the interface for roadmap persistence
type RoadmapRepository interface {
	// Save persists the roadmap and its pending domain events. A roadmap
	// with Version > 0 is only written when the stored version matches;
	// otherwise ErrVersionConflict. On success Version is incremented and
	// the events are cleared.
	Save(ctx context.Context, roadmap *Roadmap) error
	FindByID(ctx context.Context, roadmapID string) (*Roadmap, error)
	FindByStageID(ctx context.Context, stageID string) (*Roadmap, error)
	// FindWithStageStatus returns roadmaps having at least one stage in
	// one of statuses; all roadmaps when statuses is empty.
	FindWithStageStatus(ctx context.Context, statuses ...StageStatus) ([]*Roadmap, error)
}

// TaskRepository defines the interface for generated task persistence
type TaskRepository interface {
	FindByProject(ctx context.Context, projectID string) ([]*TaskInstance, error)
	// CountActiveByAssignee counts PLANNED and IN_PROGRESS tasks per assignee
	CountActiveByAssignee(ctx context.Context) (map[string]int, error)
}

// GenerationRepository is the append-only generation ledger store
type GenerationRepository interface {
	// Save inserts the run's new tasks and appends the record with its
	// pending domain events, all or nothing. A task key that is already
	// stored fails the whole save with ErrTaskExists.
	Save(ctx context.Context, record *GenerationRecord, tasks []*TaskInstance) error
	FindRecent(ctx context.Context, limit int) ([]*GenerationRecord, error)
	Totals(ctx context.Context) (*GenerationTotals, error)
}

// EmployeeDirectory lists assignment candidates. CurrentWorkload is left at
// zero; it is derived from tasks by the caller.
type EmployeeDirectory interface {
	ListActive(ctx context.Context) ([]AssignmentCandidate, error)
}

// EmployeeRepository is the writable employee directory
type EmployeeRepository interface {
	EmployeeDirectory
	Save(ctx context.Context, employee *Employee) error
	FindByID(ctx context.Context, employeeID string) (*Employee, error)
}

// AvailabilityOracle classifies an employee's status on a day
type AvailabilityOracle interface {
	StatusOf(ctx context.Context, employeeID string, day time.Time) (AvailabilityStatus, error)
}

// AttendanceRepository stores attendance and answers availability from it
type AttendanceRepository interface {
	AvailabilityOracle
	Record(ctx context.Context, record *AttendanceRecord) error
}
