package application

import (
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

// ToTemplateDTO converts a domain RoadmapTemplate to TemplateDTO
func ToTemplateDTO(t *domain.RoadmapTemplate) *TemplateDTO {
	if t == nil {
		return nil
	}

	steps := make([]StepDTO, 0, len(t.Steps))
	for _, s := range t.Steps {
		steps = append(steps, StepDTO{
			Index:         s.Index,
			Title:         s.Title,
			Description:   s.Description,
			RequiredRole:  s.RequiredRole,
			SLAUnitsHours: s.SLAHours,
			Dependencies:  nonNilInts(s.Dependencies),
			EntryCriteria: nonNilStrings(s.EntryCriteria),
			ExitCriteria:  nonNilStrings(s.ExitCriteria),
			KPIs:          nonNilStrings(s.KPIs),
		})
	}

	return &TemplateDTO{
		TemplateID:    t.TemplateID,
		Name:          t.Name,
		Category:      t.Category,
		Steps:         steps,
		Referenced:    t.Referenced,
		TotalSLAHours: t.TotalSLAHours(),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ToProjectDTO converts a domain Project to ProjectDTO
func ToProjectDTO(p *domain.Project) *ProjectDTO {
	if p == nil {
		return nil
	}
	return &ProjectDTO{
		ProjectID:           p.ProjectID,
		Name:                p.Name,
		Quantity:            p.Quantity,
		StartDate:           formatDay(p.StartDate),
		NamingPattern:       p.NamingPattern,
		DescriptionTemplate: p.DescriptionTemplate,
		RoadmapID:           p.RoadmapID,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// ToRoadmapDTO converts a domain Roadmap to RoadmapDTO including metrics
func ToRoadmapDTO(r *domain.Roadmap) *RoadmapDTO {
	if r == nil {
		return nil
	}

	stages := make([]StageDTO, 0, len(r.Stages))
	for i := range r.Stages {
		stages = append(stages, ToStageDTO(&r.Stages[i]))
	}

	return &RoadmapDTO{
		RoadmapID:       r.RoadmapID,
		ProjectID:       r.ProjectID,
		TemplateID:      r.TemplateID,
		Name:            r.Name,
		Stages:          stages,
		TotalSLAHours:   r.TotalSLAHours(),
		ProgressPercent: r.ProgressPercent(),
		Completed:       r.IsComplete(),
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ToStageDTO converts a domain Stage to StageDTO
func ToStageDTO(s *domain.Stage) StageDTO {
	return StageDTO{
		StageID:            s.StageID,
		RoadmapID:          s.RoadmapID,
		Index:              s.Index,
		Title:              s.Title,
		RequiredRole:       s.RequiredRole,
		SLAHours:           s.SLAHours,
		Status:             string(s.Status),
		AssignedEmployeeID: s.AssignedEmployeeID,
		BlockedReason:      s.BlockedReason,
		BlockedAt:          s.BlockedAt,
		SLADeadline:        s.SLADeadline(),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// ToTaskDTO converts a domain TaskInstance to TaskDTO
func ToTaskDTO(t *domain.TaskInstance) TaskDTO {
	return TaskDTO{
		TaskID:         t.TaskID,
		ProjectID:      t.ProjectID,
		RoadmapID:      t.RoadmapID,
		UnitIndex:      t.UnitIndex,
		StepIndex:      t.StepIndex,
		Title:          t.Title,
		Description:    t.Description,
		RequiredRole:   t.RequiredRole,
		EstimatedHours: t.EstimatedHours,
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		StartDate:      formatDay(t.StartDate),
		DueDate:        formatDay(t.DueDate),
		AssigneeID:     t.AssigneeID,
		Dependencies:   nonNilStrings(t.Dependencies),
		Progress:       t.Progress,
	}
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []*domain.TaskInstance) []TaskDTO {
	out := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskDTO(t))
	}
	return out
}

// ToWarningDTOs converts generation warnings
func ToWarningDTOs(warnings []domain.Warning) []WarningDTO {
	out := make([]WarningDTO, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, WarningDTO{Code: w.Code, EmployeeID: w.EmployeeID, Message: w.Message})
	}
	return out
}

// ToGenerationRecordDTO converts a ledger entry
func ToGenerationRecordDTO(r *domain.GenerationRecord) GenerationRecordDTO {
	return GenerationRecordDTO{
		GenerationID:    r.GenerationID,
		ProjectID:       r.ProjectID,
		RoadmapID:       r.RoadmapID,
		Strategy:        string(r.Strategy),
		TaskCount:       r.TaskCount,
		TaskIDs:         nonNilStrings(r.TaskIDs),
		AssignedCount:   r.AssignedCount,
		UnassignedCount: r.UnassignedCount,
		Warnings:        ToWarningDTOs(r.Warnings),
		GeneratedBy:     r.GeneratedBy,
		Timestamp:       r.Timestamp,
	}
}

// ToEmployeeDTO converts a directory entry
func ToEmployeeDTO(e *domain.Employee) *EmployeeDTO {
	if e == nil {
		return nil
	}
	return &EmployeeDTO{
		EmployeeID: e.EmployeeID,
		Name:       e.Name,
		Role:       e.Role,
		Active:     e.Active,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// ToAttendanceDTO converts an attendance record
func ToAttendanceDTO(r *domain.AttendanceRecord) *AttendanceDTO {
	return &AttendanceDTO{
		EmployeeID: r.EmployeeID,
		Day:        r.Day,
		Status:     string(r.Status),
		UpdatedAt:  r.UpdatedAt,
	}
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
