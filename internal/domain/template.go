package domain

import (
	"strings"
	"time"
)

// StepDefinition is one step of a roadmap template
type StepDefinition struct {
	Index         int      `bson:"index" json:"index" yaml:"-"`
	Title         string   `bson:"title" json:"title" yaml:"title"`
	Description   string   `bson:"description,omitempty" json:"description,omitempty" yaml:"description"`
	RequiredRole  string   `bson:"requiredRole" json:"requiredRole" yaml:"requiredRole"`
	SLAHours      float64  `bson:"slaUnitsHours" json:"slaUnitsHours" yaml:"slaUnitsHours"`
	Dependencies  []int    `bson:"dependencies,omitempty" json:"dependencies,omitempty" yaml:"dependencies"`
	EntryCriteria []string `bson:"entryCriteria,omitempty" json:"entryCriteria,omitempty" yaml:"entryCriteria"`
	ExitCriteria  []string `bson:"exitCriteria,omitempty" json:"exitCriteria,omitempty" yaml:"exitCriteria"`
	KPIs          []string `bson:"kpis,omitempty" json:"kpis,omitempty" yaml:"kpis"`
}

// RoadmapTemplate is an ordered, reusable definition of workflow steps.
// Once a roadmap references it, it is immutable.
type RoadmapTemplate struct {
	TemplateID string           `bson:"templateId" json:"templateId"`
	Name       string           `bson:"name" json:"name"`
	Category   string           `bson:"category,omitempty" json:"category,omitempty"`
	Steps      []StepDefinition `bson:"steps" json:"steps"`
	Referenced bool             `bson:"referenced" json:"referenced"`
	CreatedAt  time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// NewRoadmapTemplate numbers steps by position and validates the result
func NewRoadmapTemplate(templateID, name, category string, steps []StepDefinition, now time.Time) (*RoadmapTemplate, error) {
	numbered := make([]StepDefinition, len(steps))
	for i, step := range steps {
		step.Index = i
		numbered[i] = step
	}

	t := &RoadmapTemplate{
		TemplateID: strings.TrimSpace(templateID),
		Name:       strings.TrimSpace(name),
		Category:   category,
		Steps:      numbered,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the template is usable for instantiation and generation
func (t *RoadmapTemplate) Validate() error {
	var verrs ValidationErrors
	if t.TemplateID == "" {
		verrs.Add("templateId", "is required")
	}
	if t.Name == "" {
		verrs.Add("name", "is required")
	}
	if len(t.Steps) == 0 {
		verrs.Add("steps", "must contain at least one step")
	}
	for i, step := range t.Steps {
		verrs = append(verrs, step.validate(i)...)
	}
	return verrs.Err()
}

func (s StepDefinition) validate(position int) ValidationErrors {
	var verrs ValidationErrors
	field := func(name string) string {
		return "steps[" + itoa(position) + "]." + name
	}

	if s.Index != position {
		verrs.Add(field("index"), "must equal the step position %d", position)
	}
	if strings.TrimSpace(s.Title) == "" {
		verrs.Add(field("title"), "is required")
	}
	if s.SLAHours < 0 {
		verrs.Add(field("slaUnitsHours"), "must not be negative")
	}
	for _, dep := range s.Dependencies {
		if dep < 0 || dep >= position {
			verrs.Add(field("dependencies"), "dependency %d must refer to an earlier step", dep)
			break
		}
	}
	return verrs
}

// TotalSLAHours sums the SLA of every step
func (t *RoadmapTemplate) TotalSLAHours() float64 {
	total := 0.0
	for _, step := range t.Steps {
		total += step.SLAHours
	}
	return total
}
