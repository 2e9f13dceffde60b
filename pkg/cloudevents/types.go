package cloudevents

import (
	"time"
)

// Event types emitted by the roadmap service
const (
	RoadmapInstantiated = "roadmap.roadmap.instantiated"
	RoadmapCompleted    = "roadmap.roadmap.completed"
	StageTransitioned   = "roadmap.stage.transitioned"
	StageUnlocked       = "roadmap.stage.unlocked"
	GenerationCompleted = "roadmap.generation.completed"
)

// SourceRoadmapService is the CloudEvents source of this service
const SourceRoadmapService = "/roadmap-service"

// RoadmapCloudEvent represents a CloudEvents v1.0 compliant event
type RoadmapCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Extensions
	CorrelationID string `json:"correlationid,omitempty"`
	ProjectID     string `json:"projectid,omitempty"`
	RoadmapID     string `json:"roadmapid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
}

// RoadmapInstantiatedData is the payload of RoadmapInstantiated
type RoadmapInstantiatedData struct {
	RoadmapID  string `json:"roadmapId"`
	ProjectID  string `json:"projectId"`
	TemplateID string `json:"templateId"`
	StageCount int    `json:"stageCount"`
}

// StageTransitionedData is the payload of StageTransitioned
type StageTransitionedData struct {
	RoadmapID          string    `json:"roadmapId"`
	StageID            string    `json:"stageId"`
	StageIndex         int       `json:"stageIndex"`
	Action             string    `json:"action"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	ActorID            string    `json:"actorId,omitempty"`
	AssignedEmployeeID string    `json:"assignedEmployeeId,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}

// StageUnlockedData is the payload of StageUnlocked
type StageUnlockedData struct {
	RoadmapID  string `json:"roadmapId"`
	StageID    string `json:"stageId"`
	StageIndex int    `json:"stageIndex"`
	Cascaded   bool   `json:"cascaded"`
}

// RoadmapCompletedData is the payload of RoadmapCompleted
type RoadmapCompletedData struct {
	RoadmapID   string    `json:"roadmapId"`
	ProjectID   string    `json:"projectId"`
	CompletedAt time.Time `json:"completedAt"`
}

// GenerationCompletedData is the payload of GenerationCompleted
type GenerationCompletedData struct {
	GenerationID    string   `json:"generationId"`
	ProjectID       string   `json:"projectId"`
	RoadmapID       string   `json:"roadmapId"`
	Strategy        string   `json:"strategy"`
	TaskCount       int      `json:"taskCount"`
	AssignedCount   int      `json:"assignedCount"`
	UnassignedCount int      `json:"unassignedCount"`
	Warnings        []string `json:"warnings,omitempty"`
	GeneratedBy     string   `json:"generatedBy"`
}
