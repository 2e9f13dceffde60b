package application

import "time"

// TemplateDTO represents a roadmap template in responses
type TemplateDTO struct {
	TemplateID    string    `json:"templateId"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	Steps         []StepDTO `json:"steps"`
	Referenced    bool      `json:"referenced"`
	TotalSLAHours float64   `json:"totalSlaHours"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StepDTO represents a template step
type StepDTO struct {
	Index         int      `json:"index"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	RequiredRole  string   `json:"requiredRole"`
	SLAUnitsHours float64  `json:"slaUnitsHours"`
	Dependencies  []int    `json:"dependencies"`
	EntryCriteria []string `json:"entryCriteria"`
	ExitCriteria  []string `json:"exitCriteria"`
	KPIs          []string `json:"kpis"`
}

// ProjectDTO represents a project
type ProjectDTO struct {
	ProjectID           string    `json:"projectId"`
	Name                string    `json:"name"`
	Quantity            int       `json:"quantity"`
	StartDate           string    `json:"startDate"`
	NamingPattern       string    `json:"namingPattern,omitempty"`
	DescriptionTemplate string    `json:"descriptionTemplate,omitempty"`
	RoadmapID           string    `json:"roadmapId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RoadmapDTO represents a roadmap with its derived metrics
type RoadmapDTO struct {
	RoadmapID       string     `json:"roadmapId"`
	ProjectID       string     `json:"projectId"`
	TemplateID      string     `json:"templateId"`
	Name            string     `json:"name"`
	Stages          []StageDTO `json:"stages"`
	TotalSLAHours   float64    `json:"totalSlaHours"`
	ProgressPercent float64    `json:"progressPercent"`
	Completed       bool       `json:"completed"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// StageDTO represents a roadmap stage
type StageDTO struct {
	StageID            string     `json:"stageId"`
	RoadmapID          string     `json:"roadmapId"`
	Index              int        `json:"index"`
	Title              string     `json:"title"`
	RequiredRole       string     `json:"requiredRole"`
	SLAHours           float64    `json:"slaHours"`
	Status             string     `json:"status"`
	AssignedEmployeeID string     `json:"assignedEmployeeId,omitempty"`
	BlockedReason      string     `json:"blockedReason,omitempty"`
	BlockedAt          *time.Time `json:"blockedAt,omitempty"`
	SLADeadline        time.Time  `json:"slaDeadline"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CanActDTO answers a permission query
type CanActDTO struct {
	StageID string `json:"stageId"`
	ActorID string `json:"actorId"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

// TaskDTO represents a generated task
type TaskDTO struct {
	TaskID         string   `json:"taskId"`
	ProjectID      string   `json:"projectId"`
	RoadmapID      string   `json:"roadmapId"`
	UnitIndex      int      `json:"unitIndex"`
	StepIndex      int      `json:"stepIndex"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	RequiredRole   string   `json:"requiredRole"`
	EstimatedHours float64  `json:"estimatedHours"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status"`
	StartDate      string   `json:"startDate"`
	DueDate        string   `json:"dueDate"`
	AssigneeID     string   `json:"assigneeId,omitempty"`
	Dependencies   []string `json:"dependencies"`
	Progress       int      `json:"progress"`
}

// WarningDTO is a non-fatal generation problem
type WarningDTO struct {
	Code       string `json:"code"`
	EmployeeID string `json:"employeeId,omitempty"`
	Message    string `json:"message"`
}

// GenerationRecordDTO represents a ledger entry
type GenerationRecordDTO struct {
	GenerationID    string       `json:"generationId"`
	ProjectID       string       `json:"projectId"`
	RoadmapID       string       `json:"roadmapId"`
	Strategy        string       `json:"strategy"`
	TaskCount       int          `json:"taskCount"`
	TaskIDs         []string     `json:"taskIds"`
	AssignedCount   int          `json:"assignedCount"`
	UnassignedCount int          `json:"unassignedCount"`
	Warnings        []WarningDTO `json:"warnings"`
	GeneratedBy     string       `json:"generatedBy"`
	Timestamp       time.Time    `json:"timestamp"`
}

// GenerationSummaryDTO summarizes a generation call
type GenerationSummaryDTO struct {
	Duplicate       bool         `json:"duplicate"`
	TaskCount       int          `json:"taskCount"`
	CreatedCount    int          `json:"createdCount"`
	ExistingCount   int          `json:"existingCount"`
	AssignedCount   int          `json:"assignedCount"`
	UnassignedCount int          `json:"unassignedCount"`
	Warnings        []WarningDTO `json:"warnings"`
}

// GenerationResultDTO is the outcome of Generate. Record is nil for a
// duplicate run.
type GenerationResultDTO struct {
	Tasks   []TaskDTO            `json:"tasks"`
	Record  *GenerationRecordDTO `json:"generationRecord,omitempty"`
	Summary GenerationSummaryDTO `json:"summary"`
}

// GenerationStatsDTO aggregates the generation ledger
type GenerationStatsDTO struct {
	TotalGenerations          int                   `json:"totalGenerations"`
	TotalTasksGenerated       int                   `json:"totalTasksGenerated"`
	AverageTasksPerGeneration float64               `json:"averageTasksPerGeneration"`
	StrategyUsage             map[string]int        `json:"strategyUsage"`
	Recent                    []GenerationRecordDTO `json:"recent"`
}

// SLARiskDTO is a stage close to or past its SLA deadline
type SLARiskDTO struct {
	RoadmapID          string    `json:"roadmapId"`
	StageID            string    `json:"stageId"`
	Title              string    `json:"title"`
	RequiredRole       string    `json:"requiredRole"`
	AssignedEmployeeID string    `json:"assignedEmployeeId,omitempty"`
	Deadline           time.Time `json:"deadline"`
	DaysRemaining      int       `json:"daysRemaining"`
	Overdue            bool      `json:"overdue"`
}

// StageAgingDTO is an open stage and its age
type StageAgingDTO struct {
	RoadmapID          string `json:"roadmapId"`
	StageID            string `json:"stageId"`
	Title              string `json:"title"`
	Status             string `json:"status"`
	RequiredRole       string `json:"requiredRole"`
	AssignedEmployeeID string `json:"assignedEmployeeId,omitempty"`
	AgeInDays          int    `json:"ageInDays"`
}

// RoleThroughputDTO is stage throughput for one role
type RoleThroughputDTO struct {
	Role                 string  `json:"role"`
	TotalStages          int     `json:"totalStages"`
	CompletedStages      int     `json:"completedStages"`
	AverageDurationHours float64 `json:"averageDurationHours"`
	CompletionRate       float64 `json:"completionRate"`
}

// EmployeeDTO represents a directory entry
type EmployeeDTO struct {
	EmployeeID string    `json:"employeeId"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AttendanceDTO represents a recorded availability
type AttendanceDTO struct {
	EmployeeID string    `json:"employeeId"`
	Day        string    `json:"day"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
