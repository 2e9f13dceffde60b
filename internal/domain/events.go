package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// RoadmapInstantiatedEvent is raised when a roadmap is created from a template
type RoadmapInstantiatedEvent struct {
	RoadmapID      string    `json:"roadmapId"`
	ProjectID      string    `json:"projectId"`
	TemplateID     string    `json:"templateId"`
	StageCount     int       `json:"stageCount"`
	InstantiatedAt time.Time `json:"instantiatedAt"`
}

func (e *RoadmapInstantiatedEvent) EventType() string     { return "roadmap.roadmap.instantiated" }
func (e *RoadmapInstantiatedEvent) OccurredAt() time.Time { return e.InstantiatedAt }

// StageTransitionedEvent is raised for every applied stage action
type StageTransitionedEvent struct {
	RoadmapID          string    `json:"roadmapId"`
	StageID            string    `json:"stageId"`
	StageIndex         int       `json:"stageIndex"`
	Action             string    `json:"action"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	ActorID            string    `json:"actorId,omitempty"`
	AssignedEmployeeID string    `json:"assignedEmployeeId,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	TransitionedAt     time.Time `json:"transitionedAt"`
}

func (e *StageTransitionedEvent) EventType() string     { return "roadmap.stage.transitioned" }
func (e *StageTransitionedEvent) OccurredAt() time.Time { return e.TransitionedAt }

// StageUnlockedEvent is raised when a stage leaves LOCKED
type StageUnlockedEvent struct {
	RoadmapID  string    `json:"roadmapId"`
	StageID    string    `json:"stageId"`
	StageIndex int       `json:"stageIndex"`
	Cascaded   bool      `json:"cascaded"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

func (e *StageUnlockedEvent) EventType() string     { return "roadmap.stage.unlocked" }
func (e *StageUnlockedEvent) OccurredAt() time.Time { return e.UnlockedAt }

// RoadmapCompletedEvent is raised when the last stage is approved
type RoadmapCompletedEvent struct {
	RoadmapID   string    `json:"roadmapId"`
	ProjectID   string    `json:"projectId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *RoadmapCompletedEvent) EventType() string     { return "roadmap.roadmap.completed" }
func (e *RoadmapCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// GenerationCompletedEvent is raised when a generation run is recorded
type GenerationCompletedEvent struct {
	GenerationID    string    `json:"generationId"`
	ProjectID       string    `json:"projectId"`
	RoadmapID       string    `json:"roadmapId"`
	Strategy        string    `json:"strategy"`
	TaskCount       int       `json:"taskCount"`
	AssignedCount   int       `json:"assignedCount"`
	UnassignedCount int       `json:"unassignedCount"`
	Warnings        []string  `json:"warnings,omitempty"`
	GeneratedBy     string    `json:"generatedBy"`
	CompletedAt     time.Time `json:"completedAt"`
}

func (e *GenerationCompletedEvent) EventType() string     { return "roadmap.generation.completed" }
func (e *GenerationCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
