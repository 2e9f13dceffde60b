package domain

import (
	"strconv"
	"strings"
	"time"
)

// MaxProjectQuantity bounds the units of one project
const MaxProjectQuantity = 10000

// Project is an order whose quantity scales task generation
type Project struct {
	ProjectID           string    `bson:"projectId" json:"projectId"`
	Name                string    `bson:"name" json:"name"`
	Quantity            int       `bson:"quantity" json:"quantity"`
	StartDate           time.Time `bson:"startDate" json:"startDate"`
	NamingPattern       string    `bson:"namingPattern,omitempty" json:"namingPattern,omitempty"`
	DescriptionTemplate string    `bson:"descriptionTemplate,omitempty" json:"descriptionTemplate,omitempty"`
	RoadmapID           string    `bson:"roadmapId,omitempty" json:"roadmapId,omitempty"`
	CreatedAt           time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewProject validates and creates a project
func NewProject(projectID, name string, quantity int, startDate time.Time, namingPattern, descriptionTemplate string, now time.Time) (*Project, error) {
	p := &Project{
		ProjectID:           strings.TrimSpace(projectID),
		Name:                strings.TrimSpace(name),
		Quantity:            quantity,
		StartDate:           startDate,
		NamingPattern:       namingPattern,
		DescriptionTemplate: descriptionTemplate,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the fields task generation depends on
func (p *Project) Validate() error {
	var verrs ValidationErrors
	if p.ProjectID == "" {
		verrs.Add("projectId", "is required")
	}
	if p.Quantity < 1 || p.Quantity > MaxProjectQuantity {
		verrs.Add("quantity", "must be between 1 and %d", MaxProjectQuantity)
	}
	if p.StartDate.IsZero() {
		verrs.Add("startDate", "is required")
	}
	return verrs.Err()
}

// AttachRoadmap records the roadmap instantiated for the project
func (p *Project) AttachRoadmap(roadmapID string, now time.Time) {
	p.RoadmapID = roadmapID
	p.UpdatedAt = now
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
