package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

// Default naming and description patterns for generated tasks
const (
	DefaultNamingPattern       = "{project} - {step} (Unit {unit})"
	DefaultDescriptionTemplate = "{description}"
)

// DefaultMaxTasksPerRun caps quantity × steps of one generation run
const DefaultMaxTasksPerRun = 50000

// TaskGenerator expands a roadmap template into scheduled task instances,
// one per (unit, step) of a project.
type TaskGenerator struct {
	bands    domain.PriorityBands
	maxTasks int
}

// NewTaskGenerator creates a TaskGenerator with the given priority bands
func NewTaskGenerator(bands domain.PriorityBands) (*TaskGenerator, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	return &TaskGenerator{bands: bands, maxTasks: DefaultMaxTasksPerRun}, nil
}

// WithMaxTasks replaces the per-run task cap; n <= 0 keeps the default
func (g *TaskGenerator) WithMaxTasks(n int) *TaskGenerator {
	if n > 0 {
		g.maxTasks = n
	}
	return g
}

// Generate produces quantity × len(steps) tasks. Validation is all or
// nothing: on error no task is returned.
func (g *TaskGenerator) Generate(project *domain.Project, roadmapID string, tmpl *domain.RoadmapTemplate, now time.Time) ([]*domain.TaskInstance, error) {
	if err := validateGenerationInput(project, tmpl, g.maxTasks); err != nil {
		return nil, err
	}

	base := domain.NextWorkingDay(domain.Day(project.StartDate))

	// offsets[i] is the number of working days spent by steps before i
	offsets := make([]int, len(tmpl.Steps))
	days := make([]int, len(tmpl.Steps))
	total := 0
	for i, step := range tmpl.Steps {
		offsets[i] = total
		days[i] = domain.WorkingDaysForSLA(step.SLAHours)
		total += days[i]
	}

	naming := project.NamingPattern
	if strings.TrimSpace(naming) == "" {
		naming = DefaultNamingPattern
	}
	describing := project.DescriptionTemplate
	if strings.TrimSpace(describing) == "" {
		describing = DefaultDescriptionTemplate
	}

	projectName := project.Name
	if projectName == "" {
		projectName = project.ProjectID
	}

	tasks := make([]*domain.TaskInstance, 0, project.Quantity*len(tmpl.Steps))
	for unit := 0; unit < project.Quantity; unit++ {
		for i, step := range tmpl.Steps {
			key := domain.TaskKey{ProjectID: project.ProjectID, UnitIndex: unit, StepIndex: i}
			start := domain.AddWorkingDays(base, offsets[i])

			r := placeholders(projectName, project.Quantity, unit, i, step)
			tasks = append(tasks, &domain.TaskInstance{
				TaskID:         key.ID(),
				ProjectID:      project.ProjectID,
				RoadmapID:      roadmapID,
				UnitIndex:      unit,
				StepIndex:      i,
				Title:          r.Replace(naming),
				Description:    r.Replace(describing),
				RequiredRole:   step.RequiredRole,
				EstimatedHours: step.SLAHours,
				Priority:       g.bands.For(i),
				Status:         domain.TaskUnassigned,
				StartDate:      start,
				DueDate:        domain.AddWorkingDays(start, days[i]),
				Dependencies:   taskDependencies(project.ProjectID, unit, i, step.Dependencies),
				CreatedAt:      now,
			})
		}
	}
	return tasks, nil
}

func validateGenerationInput(project *domain.Project, tmpl *domain.RoadmapTemplate, maxTasks int) error {
	var verrs domain.ValidationErrors
	if project == nil {
		verrs.Add("projectId", "is required")
		return verrs.Err()
	}
	if strings.TrimSpace(project.ProjectID) == "" {
		verrs.Add("projectId", "is required")
	}
	if project.Quantity < 1 {
		verrs.Add("quantity", "must be at least 1")
	}
	if project.StartDate.IsZero() {
		verrs.Add("startDate", "is required")
	}
	if tmpl == nil || len(tmpl.Steps) == 0 {
		verrs.Add("steps", "template has no steps")
		return verrs.Err()
	}
	// divided rather than multiplied so a huge quantity cannot overflow
	if project.Quantity > maxTasks/len(tmpl.Steps) {
		verrs.Add("quantity", "%d units of %d steps exceed the limit of %d tasks per run",
			project.Quantity, len(tmpl.Steps), maxTasks)
	}
	for i, step := range tmpl.Steps {
		if strings.TrimSpace(step.Title) == "" {
			verrs.Add(fmt.Sprintf("steps[%d].title", i), "is required")
		}
		for _, dep := range step.Dependencies {
			if dep < 0 || dep >= i {
				verrs.Add(fmt.Sprintf("steps[%d].dependencies", i), "dependency %d is not an earlier step", dep)
				break
			}
		}
	}
	return verrs.Err()
}

// taskDependencies resolves declared step indices to task ids of the same
// unit; with none declared the task depends on the previous step.
func taskDependencies(projectID string, unit, step int, declared []int) []string {
	if len(declared) == 0 {
		if step == 0 {
			return []string{}
		}
		declared = []int{step - 1}
	}
	deps := make([]string, 0, len(declared))
	for _, d := range declared {
		deps = append(deps, domain.TaskKey{ProjectID: projectID, UnitIndex: unit, StepIndex: d}.ID())
	}
	return deps
}

func placeholders(projectName string, quantity, unit, stepIndex int, step domain.StepDefinition) *strings.Replacer {
	return strings.NewReplacer(
		"{project}", projectName,
		"{unit}", strconv.Itoa(unit+1),
		"{unitIndex}", strconv.Itoa(unit),
		"{step}", step.Title,
		"{stepIndex}", strconv.Itoa(stepIndex),
		"{role}", step.RequiredRole,
		"{quantity}", strconv.Itoa(quantity),
		"{description}", step.Description,
	)
}
