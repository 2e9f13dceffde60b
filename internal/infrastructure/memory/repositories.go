// Package memory holds process-local repositories for dry runs and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

// ErrTemplateNotFound is returned by MarkReferenced for an unknown template
var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepository is an in-memory domain.RoadmapTemplateRepository
type TemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]domain.RoadmapTemplate
}

func NewTemplateRepository(seed ...*domain.RoadmapTemplate) *TemplateRepository {
	r := &TemplateRepository{templates: make(map[string]domain.RoadmapTemplate)}
	for _, tmpl := range seed {
		r.templates[tmpl.TemplateID] = *tmpl
	}
	return r
}

func (r *TemplateRepository) Save(_ context.Context, tmpl *domain.RoadmapTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.templates[tmpl.TemplateID]; ok && existing.Referenced {
		return domain.ErrTemplateReferenced
	}
	r.templates[tmpl.TemplateID] = *tmpl
	return nil
}

func (r *TemplateRepository) FindByID(_ context.Context, templateID string) (*domain.RoadmapTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[templateID]
	if !ok {
		return nil, nil
	}
	return &tmpl, nil
}

func (r *TemplateRepository) FindAll(_ context.Context) ([]*domain.RoadmapTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.RoadmapTemplate, 0, len(r.templates))
	for _, tmpl := range r.templates {
		out = append(out, &tmpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateID < out[j].TemplateID })
	return out, nil
}

func (r *TemplateRepository) MarkReferenced(_ context.Context, templateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[templateID]
	if !ok {
		return ErrTemplateNotFound
	}
	tmpl.Referenced = true
	r.templates[templateID] = tmpl
	return nil
}

// ProjectRepository is an in-memory domain.ProjectRepository
type ProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
}

func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{projects: make(map[string]domain.Project)}
}

func (r *ProjectRepository) Save(_ context.Context, project *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ProjectID] = *project
	return nil
}

func (r *ProjectRepository) FindByID(_ context.Context, projectID string) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	project, ok := r.projects[projectID]
	if !ok {
		return nil, nil
	}
	return &project, nil
}

// RoadmapRepository is an in-memory domain.RoadmapRepository with the same
// optimistic version check as the Mongo one. Domain events are kept in
// Published for inspection.
type RoadmapRepository struct {
	mu        sync.RWMutex
	roadmaps  map[string]*domain.Roadmap
	Published []domain.DomainEvent
}

func NewRoadmapRepository() *RoadmapRepository {
	return &RoadmapRepository{roadmaps: make(map[string]*domain.Roadmap)}
}

func (r *RoadmapRepository) Save(_ context.Context, roadmap *domain.Roadmap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.roadmaps[roadmap.RoadmapID]
	switch {
	case roadmap.Version == 0 && exists:
		return domain.ErrVersionConflict
	case roadmap.Version > 0 && (!exists || stored.Version != roadmap.Version):
		return domain.ErrVersionConflict
	}

	r.Published = append(r.Published, roadmap.GetDomainEvents()...)
	roadmap.Version++
	roadmap.ClearDomainEvents()
	r.roadmaps[roadmap.RoadmapID] = cloneRoadmap(roadmap)
	return nil
}

func (r *RoadmapRepository) FindByID(_ context.Context, roadmapID string) (*domain.Roadmap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if roadmap, ok := r.roadmaps[roadmapID]; ok {
		return cloneRoadmap(roadmap), nil
	}
	return nil, nil
}

func (r *RoadmapRepository) FindByStageID(_ context.Context, stageID string) (*domain.Roadmap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, roadmap := range r.roadmaps {
		if _, ok := roadmap.Stage(stageID); ok {
			return cloneRoadmap(roadmap), nil
		}
	}
	return nil, nil
}

func (r *RoadmapRepository) FindWithStageStatus(_ context.Context, statuses ...domain.StageStatus) ([]*domain.Roadmap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[domain.StageStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []*domain.Roadmap
	for _, roadmap := range r.roadmaps {
		if len(wanted) == 0 || hasStageIn(roadmap, wanted) {
			out = append(out, cloneRoadmap(roadmap))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoadmapID < out[j].RoadmapID })
	return out, nil
}

func hasStageIn(roadmap *domain.Roadmap, statuses map[domain.StageStatus]bool) bool {
	for _, stage := range roadmap.Stages {
		if statuses[stage.Status] {
			return true
		}
	}
	return false
}

func cloneRoadmap(roadmap *domain.Roadmap) *domain.Roadmap {
	c := *roadmap
	c.Stages = append([]domain.Stage(nil), roadmap.Stages...)
	c.DomainEvents = nil
	return &c
}

// TaskRepository is an in-memory domain.TaskRepository keyed like the
// unique Mongo index
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[domain.TaskKey]domain.TaskInstance
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[domain.TaskKey]domain.TaskInstance)}
}

// insertAll stores every task or none of them
func (r *TaskRepository) insertAll(tasks []*domain.TaskInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range tasks {
		if _, exists := r.tasks[task.Key()]; exists {
			return domain.ErrTaskExists
		}
	}
	for _, task := range tasks {
		r.tasks[task.Key()] = *task
	}
	return nil
}

func (r *TaskRepository) FindByProject(_ context.Context, projectID string) ([]*domain.TaskInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.TaskInstance
	for _, task := range r.tasks {
		if task.ProjectID == projectID {
			out = append(out, &task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnitIndex != out[j].UnitIndex {
			return out[i].UnitIndex < out[j].UnitIndex
		}
		return out[i].StepIndex < out[j].StepIndex
	})
	return out, nil
}

func (r *TaskRepository) CountActiveByAssignee(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, task := range r.tasks {
		if task.AssigneeID != "" && task.Status.IsActive() {
			counts[task.AssigneeID]++
		}
	}
	return counts, nil
}

// GenerationRepository is an in-memory domain.GenerationRepository writing
// run tasks into tasks
type GenerationRepository struct {
	mu      sync.RWMutex
	tasks   *TaskRepository
	records []domain.GenerationRecord
}

func NewGenerationRepository(tasks *TaskRepository) *GenerationRepository {
	return &GenerationRepository{tasks: tasks}
}

func (r *GenerationRepository) Save(_ context.Context, record *domain.GenerationRecord, tasks []*domain.TaskInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.tasks.insertAll(tasks); err != nil {
		return err
	}
	record.ClearDomainEvents()
	r.records = append(r.records, *record)
	return nil
}

func (r *GenerationRepository) FindRecent(_ context.Context, limit int) ([]*domain.GenerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.GenerationRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		record := r.records[i]
		out = append(out, &record)
	}
	return out, nil
}

func (r *GenerationRepository) Totals(_ context.Context) (*domain.GenerationTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := &domain.GenerationTotals{StrategyUsage: make(map[domain.StrategyType]int)}
	for _, record := range r.records {
		totals.TotalGenerations++
		totals.TotalTasksGenerated += record.TaskCount
		totals.StrategyUsage[record.Strategy]++
	}
	return totals, nil
}

// EmployeeRepository is an in-memory domain.EmployeeRepository
type EmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]domain.Employee
}

func NewEmployeeRepository(seed ...*domain.Employee) *EmployeeRepository {
	r := &EmployeeRepository{employees: make(map[string]domain.Employee)}
	for _, e := range seed {
		r.employees[e.EmployeeID] = *e
	}
	return r
}

func (r *EmployeeRepository) Save(_ context.Context, employee *domain.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.employees[employee.EmployeeID] = *employee
	return nil
}

func (r *EmployeeRepository) FindByID(_ context.Context, employeeID string) (*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	employee, ok := r.employees[employeeID]
	if !ok {
		return nil, nil
	}
	return &employee, nil
}

func (r *EmployeeRepository) ListActive(_ context.Context) ([]domain.AssignmentCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.AssignmentCandidate
	for _, e := range r.employees {
		if e.Active {
			out = append(out, e.Candidate())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// AttendanceRepository is an in-memory domain.AttendanceRepository.
// Employees without a record are AVAILABLE.
type AttendanceRepository struct {
	mu      sync.RWMutex
	records map[string]domain.AvailabilityStatus
}

func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{records: make(map[string]domain.AvailabilityStatus)}
}

func attendanceKey(employeeID, day string) string {
	return employeeID + "|" + day
}

func (r *AttendanceRepository) Record(_ context.Context, record *domain.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[attendanceKey(record.EmployeeID, record.Day)] = record.Status
	return nil
}

func (r *AttendanceRepository) StatusOf(_ context.Context, employeeID string, day time.Time) (domain.AvailabilityStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if status, ok := r.records[attendanceKey(employeeID, domain.DayKey(day))]; ok {
		return status, nil
	}
	return domain.Available, nil
}
