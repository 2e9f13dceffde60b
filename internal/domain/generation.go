package domain

import "time"

// StrategyType selects an assignment strategy
type StrategyType string

const (
	StrategyRoundRobin    StrategyType = "ROUND_ROBIN"
	StrategyWorkloadBased StrategyType = "WORKLOAD_BASED"
	StrategyRoleBased     StrategyType = "ROLE_BASED"
)

// StrategyTypes lists the supported strategies
func StrategyTypes() []StrategyType {
	return []StrategyType{StrategyRoundRobin, StrategyWorkloadBased, StrategyRoleBased}
}

// IsValid reports whether s is a supported strategy
func (s StrategyType) IsValid() bool {
	switch s {
	case StrategyRoundRobin, StrategyWorkloadBased, StrategyRoleBased:
		return true
	}
	return false
}

// Warning codes surfaced in a generation summary
const (
	WarningNoAvailableCandidate  = "NO_AVAILABLE_CANDIDATE"
	WarningDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
)

// Warning is a non-fatal problem met during assignment
type Warning struct {
	Code       string `bson:"code" json:"code"`
	EmployeeID string `bson:"employeeId,omitempty" json:"employeeId,omitempty"`
	Message    string `bson:"message" json:"message"`
}

// GenerationRecord is the immutable audit entry of one generation run
type GenerationRecord struct {
	GenerationID    string        `bson:"generationId" json:"generationId"`
	ProjectID       string        `bson:"projectId" json:"projectId"`
	RoadmapID       string        `bson:"roadmapId" json:"roadmapId"`
	Strategy        StrategyType  `bson:"strategy" json:"strategy"`
	TaskCount       int           `bson:"taskCount" json:"taskCount"`
	TaskIDs         []string      `bson:"taskIds" json:"taskIds"`
	AssignedCount   int           `bson:"assignedCount" json:"assignedCount"`
	UnassignedCount int           `bson:"unassignedCount" json:"unassignedCount"`
	Warnings        []Warning     `bson:"warnings,omitempty" json:"warnings,omitempty"`
	GeneratedBy     string        `bson:"generatedBy" json:"generatedBy"`
	Timestamp       time.Time     `bson:"timestamp" json:"timestamp"`
	DomainEvents    []DomainEvent `bson:"-" json:"-"`
}

// NewGenerationRecord builds the record of a run over tasks
func NewGenerationRecord(generationID, projectID, roadmapID string, strategy StrategyType, tasks []*TaskInstance, warnings []Warning, generatedBy string, now time.Time) *GenerationRecord {
	ids := make([]string, len(tasks))
	assigned := 0
	for i, task := range tasks {
		ids[i] = task.TaskID
		if task.AssigneeID != "" {
			assigned++
		}
	}

	record := &GenerationRecord{
		GenerationID:    generationID,
		ProjectID:       projectID,
		RoadmapID:       roadmapID,
		Strategy:        strategy,
		TaskCount:       len(tasks),
		TaskIDs:         ids,
		AssignedCount:   assigned,
		UnassignedCount: len(tasks) - assigned,
		Warnings:        warnings,
		GeneratedBy:     generatedBy,
		Timestamp:       now,
	}

	record.DomainEvents = []DomainEvent{&GenerationCompletedEvent{
		GenerationID:    generationID,
		ProjectID:       projectID,
		RoadmapID:       roadmapID,
		Strategy:        string(strategy),
		TaskCount:       record.TaskCount,
		AssignedCount:   record.AssignedCount,
		UnassignedCount: record.UnassignedCount,
		Warnings:        warningCodes(warnings),
		GeneratedBy:     generatedBy,
		CompletedAt:     now,
	}}
	return record
}

func warningCodes(warnings []Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	codes := make([]string, len(warnings))
	for i, w := range warnings {
		codes[i] = w.Code
	}
	return codes
}

// ClearDomainEvents clears all domain events
func (g *GenerationRecord) ClearDomainEvents() {
	g.DomainEvents = nil
}

// GenerationTotals are the aggregate counters over the ledger
type GenerationTotals struct {
	TotalGenerations    int
	TotalTasksGenerated int
	StrategyUsage       map[StrategyType]int
}
